package features

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
)

// ErrManifest reports an unreadable AndroidManifest.xml.
var ErrManifest = errors.New("features: bad manifest")

// Manifest is the subset of a decoded AndroidManifest.xml used for features.
type Manifest struct {
	Package     string   `json:"package"`
	VersionName string   `json:"version_name,omitempty"`
	Permissions []string `json:"permissions"`
}

type xmlManifest struct {
	Package     string    `xml:"package,attr"`
	VersionName string    `xml:"http://schemas.android.com/apk/res/android versionName,attr"`
	Uses        []xmlPerm `xml:"uses-permission"`
	Uses23      []xmlPerm `xml:"uses-permission-sdk-23"`
}

type xmlPerm struct {
	Name string `xml:"http://schemas.android.com/apk/res/android name,attr"`
}

// ParseManifest reads a text AndroidManifest.xml as written by apktool.
// Permissions keep document order; duplicates are dropped.
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	var xm xmlManifest
	if err := xml.Unmarshal(data, &xm); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifest, path, err)
	}

	m := &Manifest{Package: xm.Package, VersionName: xm.VersionName}
	seen := make(map[string]bool)
	for _, p := range append(xm.Uses, xm.Uses23...) {
		if p.Name == "" || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		m.Permissions = append(m.Permissions, p.Name)
	}
	return m, nil
}
