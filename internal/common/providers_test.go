package common

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleProviders = `
providers:
  - name: shippo
    kind: Shippo
    enabled: true
    api_key_env: TEST_SHIPPO_KEY
    timeout: 3s
  - kind: easypost
    enabled: false
    mock: true
  - name: shipengine
    kind: shipengine
    enabled: true
    carrier_ids: ["se-1", "se-2"]
`

func TestParseProviderConfig(t *testing.T) {
	t.Setenv("TEST_SHIPPO_KEY", "shippo_test_123")

	providers, err := ParseProviderConfig([]byte(sampleProviders))
	if err != nil {
		t.Fatalf("ParseProviderConfig: %v", err)
	}
	if len(providers) != 3 {
		t.Fatalf("got %d providers, want 3", len(providers))
	}

	shippo := providers[0]
	if shippo.Kind != "shippo" || shippo.APIKey != "shippo_test_123" || shippo.Timeout != 3*time.Second {
		t.Errorf("shippo = %+v", shippo)
	}
	if providers[1].Name != "easypost" || providers[1].Enabled || !providers[1].Mock {
		t.Errorf("easypost = %+v", providers[1])
	}
	if got := strings.Join(providers[2].CarrierIds, ","); got != "se-1,se-2" {
		t.Errorf("carrier ids = %q", got)
	}
}

func TestParseProviderConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown kind", "providers:\n  - kind: fedex\n", "unknown kind"},
		{"duplicate", "providers:\n  - kind: shippo\n  - kind: shippo\n", "duplicate"},
		{"malformed", "providers: [", "unable to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProviderConfig([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadProviderConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte(sampleProviders), 0o600); err != nil {
		t.Fatal(err)
	}
	providers, err := LoadProviderConfig(path)
	if err != nil {
		t.Fatalf("LoadProviderConfig: %v", err)
	}
	if len(providers) != 3 {
		t.Errorf("got %d providers", len(providers))
	}

	if _, err := LoadProviderConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestMockProviderConfig(t *testing.T) {
	for _, p := range MockProviderConfig() {
		if !p.Enabled || !p.Mock {
			t.Errorf("%s should be enabled in mock mode", p.Name)
		}
	}
}
