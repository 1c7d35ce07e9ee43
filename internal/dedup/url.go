package dedup

import (
	"net/url"
	"sort"
	"strings"
)

// CanonicalURL reduces a posting URL to the form compared for url_match:
// scheme, host and path lowercased, trailing slash and fragment removed,
// tracking parameters dropped and the remaining query sorted.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(strings.ToLower(u.Path), "/")
	u.RawPath = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	q := u.Query()
	for k := range q {
		if isTrackingParam(k) {
			q.Del(k)
		}
	}

	// LinkedIn search pages carry the posting in currentJobId; without it the
	// query is the only thing telling two searches apart.
	if strings.Contains(u.Host, "linkedin.com") {
		if v := q.Get("currentJobId"); v != "" {
			q = url.Values{"currentJobId": {v}}
		}
	}

	for k := range q {
		sort.Strings(q[k])
	}
	u.RawQuery = q.Encode()
	u.ForceQuery = false

	return u.String()
}

func isTrackingParam(k string) bool {
	lk := strings.ToLower(k)
	if strings.HasPrefix(lk, "utm_") {
		return true
	}
	switch lk {
	case "gclid", "fbclid", "msclkid", "mc_cid", "mc_eid", "mkt_tok", "trk", "refid", "trackingid":
		return true
	}
	return false
}

// sameURL reports whether two postings share a non-empty canonical URL.
func sameURL(a, b string) bool {
	return a != "" && a == b
}
