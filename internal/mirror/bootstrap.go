package mirror

import "net/url"

// supportedBootstrapHosts maps a remote host to the object-store bucket
// that holds its published bootstrap archives. Only hosts in this
// allowlist are offered bootstrap-from-archive or update_bootstrap; every
// other host always builds its mirror by incremental fetch.
var supportedBootstrapHosts = map[string]string{
	"chromium.googlesource.com":        "chromium-git-cache",
	"chrome-internal.googlesource.com": "chrome-git-cache",
}

// BootstrapBucket reports the bucket holding bootstrap archives for
// rawURL's host, and whether rawURL's host is on the allowlist at all.
func BootstrapBucket(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	bucket, ok := supportedBootstrapHosts[u.Host]

	return bucket, ok
}
