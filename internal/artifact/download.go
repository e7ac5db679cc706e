package artifact

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// HTTPDownloader fetches artifacts from a mirror. URLTemplate takes
// {software} and {version} placeholders, e.g.
//
//	https://mirror.example/jars/{software}-{version}.jar
type HTTPDownloader struct {
	URLTemplate string
	Client      *http.Client
}

func (d *HTTPDownloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{Timeout: 5 * time.Minute}
}

// URL expands the template for a software/version pair.
func (d *HTTPDownloader) URL(sw Software, version string) string {
	r := strings.NewReplacer(
		"{software}", strings.ToLower(string(sw)),
		"{version}", version,
	)
	return r.Replace(d.URLTemplate)
}

// Fetch downloads the artifact to dest. The file is written via a
// temporary name so a partial download never looks like a cached jar.
func (d *HTTPDownloader) Fetch(sw Software, version, dest string) error {
	url := d.URL(sw, version)
	resp, err := d.client().Get(url)
	if err != nil {
		return fmt.Errorf("artifact: download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("artifact: download %s: status %s", url, resp.Status)
	}
	tmp := dest + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("artifact: download temp file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("artifact: download %s: %w", url, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("artifact: download %s: %w", url, err)
	}
	return os.Rename(tmp, dest)
}
