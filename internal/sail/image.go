package sail

import "strings"

// NormalizeImage drops a pinned digest ("mysql/mysql-server:8.0@sha256:...")
// so a re-pulled image does not read as a different one.
func NormalizeImage(image string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(image), "@")
	return name
}
