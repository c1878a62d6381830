package nus

import "net/url"

// ReqData is an immutable description of an HTTP(S) request: a path that
// may be relative or absolute, a set of query parameters, a set of
// headers, and an optional client certificate. Two ReqData values compose
// with Merge, the caller's values winning on key collision.
type ReqData struct {
	Path    string
	Params  map[string]string
	Headers map[string]string
	Cert    *ClientCert
}

// ClientCert is a TLS client certificate/key pair, used by sources such as
// Ninja that authenticate with a pinned client certificate.
type ClientCert struct {
	CertFile string
	KeyFile  string
}

// Merge resolves other's path against r's (per RFC 3986 URL-join rules),
// shallow-merges params and headers with other winning on collision, and
// takes other's cert if r has none.
//
// Merge is associative: (a.Merge(b)).Merge(c) == a.Merge(b.Merge(c)), with
// c winning over b winning over a.
func (r ReqData) Merge(other ReqData) ReqData {
	path := other.Path
	if base, err := url.Parse(r.Path); err == nil {
		if ref, err := url.Parse(other.Path); err == nil {
			path = base.ResolveReference(ref).String()
		}
	}

	params := make(map[string]string, len(r.Params)+len(other.Params))
	for k, v := range r.Params {
		params[k] = v
	}
	for k, v := range other.Params {
		params[k] = v
	}

	headers := make(map[string]string, len(r.Headers)+len(other.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}
	for k, v := range other.Headers {
		headers[k] = v
	}

	cert := r.Cert
	if cert == nil {
		cert = other.Cert
	}

	return ReqData{Path: path, Params: params, Headers: headers, Cert: cert}
}
