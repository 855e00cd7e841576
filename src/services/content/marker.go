package content

import (
	"os"
	"path/filepath"
	"strings"
)

// MarkerFileName is the protective file written into every managed folder.
// It is never listed, copied, served or removed by a generic file delete.
const MarkerFileName = ".htaccess"

// markerContent keeps scripts from executing and only lets images through
// on web servers that honour per-directory configuration.
const markerContent = `# Disable script execution
<FilesMatch "\.(php|php3|php4|php5|phtml|pl|py|jsp|asp|sh|cgi)$">
  Order Deny,Allow
  Deny from all
</FilesMatch>

# Only allow images
<FilesMatch "\.(jpg|jpeg|png|gif|webp|svg)$">
  Order Allow,Deny
  Allow from all
</FilesMatch>

# No CGI in this folder
Options -ExecCGI
RemoveHandler .php .php3 .php4 .php5 .phtml .pl .py .jsp .asp .sh .cgi
`

// IsReserved reports whether a file name is the protective marker.
func IsReserved(name string) bool {
	return strings.EqualFold(filepath.Base(name), MarkerFileName)
}

// WriteMarker (re)creates the marker inside dir.
func WriteMarker(dir string) error {
	return os.WriteFile(filepath.Join(dir, MarkerFileName), []byte(markerContent), 0o644)
}

// MarkerContent returns the marker body, mostly for tests and repair jobs.
func MarkerContent() string {
	return markerContent
}
