package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadProxies merges browser.proxies with the lines of browser.proxies_file.
// A missing file is ignored; blank lines and # comments are skipped.
func (c *Config) LoadProxies() ([]string, error) {
	proxies := make([]string, 0, len(c.Browser.Proxies))
	seen := make(map[string]bool)
	push := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") || seen[p] {
			return
		}
		seen[p] = true
		proxies = append(proxies, p)
	}

	for _, p := range c.Browser.Proxies {
		push(p)
	}

	if c.Browser.ProxiesFile == "" {
		return proxies, nil
	}
	f, err := os.Open(c.Browser.ProxiesFile)
	if os.IsNotExist(err) {
		return proxies, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		push(scanner.Text())
	}
	return proxies, scanner.Err()
}
