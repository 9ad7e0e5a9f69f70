package main

import (
	"testing"

	"github.com/vexfs/vexfs/pkg/config"
	"github.com/vexfs/vexfs/pkg/durability"
)

func TestDurabilityPolicy(t *testing.T) {
	tests := []struct {
		name    string
		want    durability.Policy
		wantErr bool
	}{
		{"none", durability.PolicyNone, false},
		{"metadata-only", durability.PolicyMetadataOnly, false},
		{"data-plus-metadata", durability.PolicyDataPlusMetadata, false},
		{"strict", durability.PolicyStrict, false},
		{"configurable", durability.PolicyConfigurable, false},
		{"bogus", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := durabilityPolicy(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("durabilityPolicy(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("durabilityPolicy(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestOpenDevice_UnknownBackend(t *testing.T) {
	_, err := openDevice(config.StorageConfig{Backend: "tape"})
	if err == nil {
		t.Fatal("openDevice() with unknown backend should error")
	}
}

func TestOpenDevice_Memory(t *testing.T) {
	dev, err := openDevice(config.StorageConfig{Backend: "memory", BlockSize: 4096})
	if err != nil {
		t.Fatalf("openDevice() error = %v", err)
	}
	if dev.BlockSize() != 4096 {
		t.Errorf("BlockSize() = %d, want 4096", dev.BlockSize())
	}
}
