package fetcher

import (
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Manifest lists the dataset files a project needs locally. Entries point
// either at a direct HTTP/FTP URL or at a file in a Hugging Face dataset
// repository.
type Manifest struct {
	// Dir is the root directory dataset destinations are resolved under.
	// Left empty when the manifest does not set it; callers fill in their
	// configured default.
	Dir      string    `yaml:"dir"`
	Datasets []Dataset `yaml:"datasets"`
}

// HFRef identifies a file in a Hugging Face dataset repository. A Path
// ending in "/" refers to every file under that prefix.
type HFRef struct {
	Repo     string `yaml:"repo"`
	Revision string `yaml:"revision,omitempty"`
	Path     string `yaml:"path"`
}

// Dataset is a single manifest entry.
type Dataset struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url,omitempty"`
	HuggingFace *HFRef `yaml:"huggingface,omitempty"`
	// Dest is the destination path relative to the manifest Dir. Defaults
	// to the source file's base name (or Name for directory references).
	Dest    string `yaml:"dest,omitempty"`
	SHA256  string `yaml:"sha256,omitempty"`
	Extract bool   `yaml:"extract,omitempty"`
}

// IsTree reports whether the entry refers to a Hugging Face directory
// rather than a single file.
func (d *Dataset) IsTree() bool {
	return d.HuggingFace != nil && strings.HasSuffix(d.HuggingFace.Path, "/")
}

// LoadManifest reads and validates a dataset manifest from a YAML file.
func LoadManifest(manifestPath string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: read %s", manifestPath)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "manifest: parse %s", manifestPath)
	}

	if len(m.Datasets) == 0 {
		return nil, eris.Errorf("manifest: %s lists no datasets", manifestPath)
	}

	seen := make(map[string]bool, len(m.Datasets))
	for i := range m.Datasets {
		d := &m.Datasets[i]
		if err := validateDataset(d); err != nil {
			return nil, err
		}
		if seen[d.Name] {
			return nil, eris.Errorf("manifest: duplicate dataset name %q", d.Name)
		}
		seen[d.Name] = true
	}

	return &m, nil
}

func validateDataset(d *Dataset) error {
	if d.Name == "" {
		return eris.New("manifest: dataset missing name")
	}
	if (d.URL == "") == (d.HuggingFace == nil) {
		return eris.Errorf("manifest: dataset %q needs exactly one of url or huggingface", d.Name)
	}

	if hf := d.HuggingFace; hf != nil {
		if hf.Repo == "" || hf.Path == "" {
			return eris.Errorf("manifest: dataset %q huggingface entry needs repo and path", d.Name)
		}
		if hf.Revision == "" {
			hf.Revision = "main"
		}
	}

	if d.Dest == "" {
		d.Dest = defaultDest(d)
	}
	return nil
}

// defaultDest derives a destination from the source: the base name of the
// referenced file, or the dataset name for directory references.
func defaultDest(d *Dataset) string {
	if d.HuggingFace != nil {
		if d.IsTree() {
			return d.Name
		}
		return path.Base(d.HuggingFace.Path)
	}
	if u, err := url.Parse(d.URL); err == nil && u.Path != "" && u.Path != "/" {
		return path.Base(u.Path)
	}
	return d.Name
}
