// Package bypass recognises bot-protection challenge pages, so a scrape that
// was blocked is reported as such instead of as an ordinary HTTP failure.
package bypass

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
)

// Response is the part of a fetched page the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a response is a bot-protection block or challenge,
// and which vendor served it.
type Detector func(res *Response) (detected bool, source string)

// signature describes one vendor's block page.
type signature struct {
	source   string
	statuses []int
	server   string   // substring of the lowercased Server header
	headers  []string // presence of any of these headers
	body     [][]byte // any of these substrings in the body
	// bodyAll requires every one of these substrings in the body.
	bodyAll [][]byte
}

func (s signature) detect(res *Response) (bool, string) {
	if !slices.Contains(s.statuses, res.StatusCode) {
		return false, ""
	}
	if s.server != "" && strings.Contains(strings.ToLower(res.Header.Get("Server")), s.server) {
		return true, s.source
	}
	for _, h := range s.headers {
		if res.Header.Get(h) != "" {
			return true, s.source
		}
	}
	for _, marker := range s.body {
		if bytes.Contains(res.Body, marker) {
			return true, s.source
		}
	}
	if len(s.bodyAll) > 0 {
		for _, marker := range s.bodyAll {
			if !bytes.Contains(res.Body, marker) {
				return false, ""
			}
		}
		return true, s.source
	}
	return false, ""
}

var signatures = []signature{
	{
		source:   "Cloudflare",
		statuses: []int{http.StatusForbidden, http.StatusServiceUnavailable},
		server:   "cloudflare",
		body: [][]byte{
			[]byte("cf-browser-verification"),
			[]byte("cloudflare-nginx"),
			[]byte("cf-turnstile"),
			[]byte("Attention Required! | Cloudflare"),
		},
	},
	{
		source:   "Akamai",
		statuses: []int{http.StatusForbidden},
		server:   "akamai",
		bodyAll:  [][]byte{[]byte("Reference #"), []byte("Access Denied")},
	},
	{
		source:   "DataDome",
		statuses: []int{http.StatusForbidden},
		server:   "datadome",
		headers:  []string{"X-DataDome", "X-DataDome-Response"},
		body:     [][]byte{[]byte("geo.captcha-delivery.com"), []byte("datadome")},
	},
	{
		source:   "PerimeterX",
		statuses: []int{http.StatusForbidden},
		headers:  []string{"X-Px-Captcha"},
		body: [][]byte{
			[]byte("client.perimeterx.net"),
			[]byte("px-captcha"),
			[]byte("_pxBlock"),
		},
	},
}

// DefaultDetectors returns detectors for Cloudflare, Akamai, DataDome and
// PerimeterX, in that order.
func DefaultDetectors() []Detector {
	out := make([]Detector, 0, len(signatures))
	for _, s := range signatures {
		out = append(out, s.detect)
	}
	return out
}

// Analyze runs res through detectors and returns the first match.
func Analyze(res *Response, detectors []Detector) (bool, string) {
	if res == nil {
		return false, ""
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return true, source
		}
	}
	return false, ""
}
