package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/bodgit/nus"
	"github.com/bodgit/nus/codec"
	"github.com/bodgit/nus/content"
	"github.com/bodgit/nus/crypto"
	"github.com/bodgit/nus/sources"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var fs = afero.NewOsFs()

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func loadKeyStore(c *cli.Context) (*nus.KeyStore, error) {
	ks := nus.NewKeyStore()
	if path := c.String("keys"); path != "" {
		if err := ks.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return ks, nil
}

func buildLoadConfig(c *cli.Context) nus.NUSTypeLoadConfig {
	cfg := nus.DefaultNUSTypeLoadConfig()
	cfg.VerifyChecksums = !c.Bool("no-verify")
	if c.Bool("no-verify") {
		cfg.VerifySignatures = nus.FalseState()
	}
	return cfg
}

func buildSourceConfig(c *cli.Context) nus.SourceConfig {
	cfg := nus.DefaultSourceConfig()
	if n := c.Int("retries"); n > 0 {
		cfg.HTTPRetries = n
	}
	return cfg
}

func openCache(c *cli.Context) *nus.Cache {
	return nus.NewCache(fs, c.String("cache"))
}

func contentSource(c *cli.Context) *sources.ContentSource {
	config := buildSourceConfig(c)
	cache := openCache(c)
	userAgent := c.String("user-agent")
	load := buildLoadConfig(c)
	if c.Bool("no-cdn") {
		return sources.NewContentServerWiiUNoCDN(config, cache, userAgent, load)
	}
	return sources.NewContentServerWiiUCDN(config, cache, userAgent, load)
}

func parseTitleID(s string) (nus.TitleID, error) {
	return nus.ParseTitleID(s)
}

func tmdCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	titleID, err := parseTitleID(c.Args().Get(0))
	if err != nil {
		return err
	}
	version := -1
	if c.NArg() > 1 {
		v, err := strconv.Atoi(c.Args().Get(1))
		if err != nil {
			return err
		}
		version = v
	}

	ccs := contentSource(c)
	tmd, err := ccs.GetTMD(context.Background(), titleID, version)
	if err != nil {
		return err
	}

	if out := c.Path("output"); out != "" {
		data, err := tmd.Build()
		if err != nil {
			return err
		}
		return afero.WriteFile(fs, out, data, 0o644)
	}

	fmt.Printf("title id:      %s\n", tmd.TitleID)
	fmt.Printf("title version: %d\n", tmd.TitleVersion)
	fmt.Printf("contents:      %d\n", len(tmd.Contents))
	for _, ce := range tmd.Contents {
		fmt.Printf("  id=%08x index=%d size=%d hashed=%v encrypted=%v\n",
			ce.ID, ce.Index, ce.Size, ce.Type.Hashed(), ce.Type.Encrypted())
	}
	return nil
}

func ticketCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	titleID, err := parseTitleID(c.Args().Get(0))
	if err != nil {
		return err
	}

	ccs := contentSource(c)
	ticket, err := ccs.GetCetk(context.Background(), titleID)
	if err != nil {
		return err
	}

	if out := c.Path("output"); out != "" {
		data, err := ticket.Build()
		if err != nil {
			return err
		}
		return afero.WriteFile(fs, out, data, 0o644)
	}

	fmt.Printf("title id: %s\n", ticket.TitleID)
	fmt.Printf("issuer:   %s\n", ticket.Issuer)
	return nil
}

func idbeCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	titleID, err := parseTitleID(c.Args().Get(0))
	if err != nil {
		return err
	}
	version := -1
	if c.NArg() > 1 {
		v, err := strconv.Atoi(c.Args().Get(1))
		if err != nil {
			return err
		}
		version = v
	}

	keys, err := loadKeyStore(c)
	if err != nil {
		return err
	}

	config := buildSourceConfig(c)
	cache := openCache(c)
	load := buildLoadConfig(c)

	var server *sources.IDBEServer
	switch c.String("platform") {
	case "ctr":
		server = sources.NewIDBEServer3DS(config, cache, c.String("user-agent"), load, keys)
	default:
		server = sources.NewIDBEServerWiiU(config, cache, c.String("user-agent"), load, keys)
	}

	idbe, err := server.GetIDBE(context.Background(), titleID, version)
	if err != nil {
		return err
	}

	fmt.Printf("platform: %s\n", idbe.Platform)
	fmt.Printf("region:   %#x\n", uint32(idbe.Region))
	for i, name := range idbe.TitleNames {
		if name != "" {
			fmt.Printf("  [%2d] %s\n", i, name)
		}
	}

	if out := c.Path("output"); out != "" {
		return afero.WriteFile(fs, out, idbe.IconData, 0o644)
	}
	return nil
}

func updateListCommand(c *cli.Context) error {
	config := buildSourceConfig(c)
	cache := openCache(c)
	userAgent := c.String("user-agent")
	load := buildLoadConfig(c)

	var tagaya *sources.Tagaya
	if c.Bool("no-cdn") {
		tagaya = sources.NewTagayaNoCDN(config, cache, userAgent, load)
	} else {
		tagaya = sources.NewTagayaCDN(config, cache, userAgent, load)
	}

	ctx := context.Background()

	if c.NArg() < 1 {
		v, err := tagaya.GetLatestUpdateListVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("latest version: %d\n", v.Value)
		return nil
	}

	version, err := strconv.Atoi(c.Args().Get(0))
	if err != nil {
		return err
	}
	list, err := tagaya.GetUpdateList(ctx, version)
	if err != nil {
		return err
	}
	for _, e := range list.Entries {
		fmt.Printf("%s %d\n", e.TitleID, e.TitleVersion)
	}
	return nil
}

// progressFs wraps an afero.Fs so every file it creates ticks a
// progress bar, without the extractor needing to know about reporting.
type progressFs struct {
	afero.Fs
	bar *progressbar.ProgressBar
}

func (p *progressFs) Create(name string) (afero.File, error) {
	f, err := p.Fs.Create(name)
	if err == nil {
		_ = p.bar.Add(1)
	}
	return f, err
}

// findContentEntry locates the TMD content entry for the given secondary
// index (FST entries reference content by this index, not content ID).
func findContentEntry(tmd *codec.TMD, index uint16) (codec.ContentEntry, error) {
	for _, ce := range tmd.Contents {
		if ce.Index == index {
			return ce, nil
		}
	}
	return codec.ContentEntry{}, fmt.Errorf("nus: content index %d not present in tmd", index)
}

// openContent streams and wraps the content file belonging to index,
// fetching its H3 table first when it's hashed.
func openContent(ctx context.Context, ccs *sources.ContentSource, titleID nus.TitleID, tmd *codec.TMD, titleKey []byte, verify bool, index uint16) (*content.Reader, codec.ContentEntry, func() error, error) {
	entry, err := findContentEntry(tmd, index)
	if err != nil {
		return nil, codec.ContentEntry{}, nil, err
	}

	var h3 []byte
	if entry.Type.Hashed() {
		h3, err = ccs.GetH3(ctx, titleID, entry.ID)
		if err != nil {
			return nil, codec.ContentEntry{}, nil, err
		}
	}

	appReader, closer, err := ccs.GetApp(ctx, titleID, entry.ID)
	if err != nil {
		return nil, codec.ContentEntry{}, nil, err
	}

	reader := content.New(appReader, content.Params{
		Hashed:       entry.Type.Hashed(),
		Encrypted:    entry.Type.Encrypted(),
		ContentHash:  entry.Hash[:20],
		TitleKey:     titleKey,
		ContentIndex: entry.Index,
		H3:           h3,
		TMDAppSize:   int64(entry.Size),
		Verify:       verify,
	})
	return reader, entry, func() error { return closer(nil) }, nil
}

func extractCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	titleID, err := parseTitleID(c.Args().Get(0))
	if err != nil {
		return err
	}
	directory := c.Args().Get(1)

	keys, err := loadKeyStore(c)
	if err != nil {
		return err
	}

	ccs := contentSource(c)
	ctx := context.Background()

	tmd, err := ccs.GetTMD(ctx, titleID, -1)
	if err != nil {
		return err
	}

	ticket, err := ccs.GetCetk(ctx, titleID)
	if err != nil {
		return err
	}

	titleKey, err := crypto.DecryptTitleKey(crypto.KeySet{CommonWiiU: keys.CommonWiiU()}, ticket.TitleKeyEncrypted, titleID)
	if err != nil {
		return err
	}

	verify := !c.Bool("no-verify")

	fstReader, fstEntry, fstCloser, err := openContent(ctx, ccs, titleID, tmd, titleKey, verify, 0)
	if err != nil {
		return err
	}
	fstData, err := fstReader.GetData(0, int64(fstEntry.Size))
	if cerr := fstCloser(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	var fstCodec codec.FST
	if err := nus.LoadBytes(&fstCodec, fstData); err != nil {
		return err
	}
	tree, err := content.Build(&fstCodec)
	if err != nil {
		return err
	}

	if err := fs.MkdirAll(directory, 0o755); err != nil {
		return err
	}

	targetFs := afero.Fs(fs)
	if !c.Bool("no-progress") {
		bar := progressbar.Default(int64(len(tree.Files)), "extracting")
		targetFs = &progressFs{Fs: fs, bar: bar}
	}

	extractor := content.NewExtractor(targetFs, directory, func(index uint16) (*content.Reader, func() error, error) {
		reader, _, closer, err := openContent(ctx, ccs, titleID, tmd, titleKey, verify, index)
		return reader, closer, err
	})

	return extractor.Extract(tree)
}

func samuraiTitleCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}
	contentID, err := nus.ParseContentID(c.Args().Get(0))
	if err != nil {
		return err
	}

	config := buildSourceConfig(c)
	cache := openCache(c)
	samurai := sources.NewSamurai(c.String("region"), c.Int("shop-id"), c.String("lang"), config, cache, c.String("user-agent"))

	title, err := samurai.GetTitle(context.Background(), contentID)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", title.ContentID, title.Name)
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "nus"
	app.Usage = "Nintendo update/content distribution network client"
	app.Version = fmt.Sprintf("%s, commit %s, built at %s", version, commit, date)

	app.Flags = []cli.Flag{
		&cli.PathFlag{Name: "cache", Usage: "cache directory", Value: nus.DefaultCachePath},
		&cli.StringFlag{Name: "user-agent", Usage: "HTTP User-Agent", Value: nus.DefaultUserAgent},
		&cli.PathFlag{Name: "keys", Usage: "path to a TOML key store file"},
		&cli.BoolFlag{Name: "no-verify", Usage: "skip checksum/signature verification"},
		&cli.BoolFlag{Name: "no-cdn", Usage: "use the uncached/origin server instead of the CDN"},
		&cli.IntFlag{Name: "retries", Usage: "HTTP retry count"},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "tmd",
			Usage:     "Fetch a title's metadata",
			ArgsUsage: "TITLEID [VERSION]",
			Action:    tmdCommand,
			Flags: []cli.Flag{
				&cli.PathFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the raw TMD to `FILE`"},
			},
		},
		{
			Name:      "ticket",
			Usage:     "Fetch a title's ticket",
			ArgsUsage: "TITLEID",
			Action:    ticketCommand,
			Flags: []cli.Flag{
				&cli.PathFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the raw ticket to `FILE`"},
			},
		},
		{
			Name:      "idbe",
			Usage:     "Fetch and decrypt a title's icon database entry",
			ArgsUsage: "TITLEID [VERSION]",
			Action:    idbeCommand,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "platform", Usage: "wup or ctr", Value: "wup"},
				&cli.PathFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the decoded icon body to `FILE`"},
			},
		},
		{
			Name:      "updatelist",
			Usage:     "Fetch the latest update-list version, or a specific version's entries",
			ArgsUsage: "[VERSION]",
			Action:    updateListCommand,
		},
		{
			Name:      "extract",
			Usage:     "Download and extract a title's filesystem",
			ArgsUsage: "TITLEID DIRECTORY",
			Action:    extractCommand,
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "no-progress", Usage: "disable the progress bar"},
			},
		},
		{
			Name:      "title",
			Usage:     "Fetch a catalog title entry from Samurai",
			ArgsUsage: "CONTENTID",
			Action:    samuraiTitleCommand,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "region", Value: "US", Usage: "shop region path segment"},
				&cli.IntFlag{Name: "shop-id", Value: 1, Usage: "shop_id query parameter"},
				&cli.StringFlag{Name: "lang", Value: "en", Usage: "lang query parameter"},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
