package main

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/effects"
)

func TestKeyPackageRoundTrip(t *testing.T) {
	dealt, err := threshold.GenerateDealt(2, 3, effects.NewSimulated(1))
	if err != nil {
		t.Fatalf("GenerateDealt: %v", err)
	}

	dir := t.TempDir()
	for _, kp := range dealt {
		path := filepath.Join(dir, "holder.key")
		if err := writeKeyPackage(path, kp); err != nil {
			t.Fatalf("writeKeyPackage: %v", err)
		}
		got, err := readKeyPackageFile(path)
		if err != nil {
			t.Fatalf("readKeyPackageFile: %v", err)
		}
		if got.Index != kp.Index {
			t.Fatalf("index mismatch: got %d want %d", got.Index, kp.Index)
		}
		if !got.Share.Equal(&kp.Share) {
			t.Fatalf("share did not round-trip for holder %d", kp.Index)
		}
	}
}

func TestPublicPackageRoundTrip(t *testing.T) {
	dealt, err := threshold.GenerateDealt(2, 3, effects.NewSimulated(2))
	if err != nil {
		t.Fatalf("GenerateDealt: %v", err)
	}

	path := filepath.Join(t.TempDir(), "group.pub")
	if err := writePublicPackage(path, dealt[0].Group); err != nil {
		t.Fatalf("writePublicPackage: %v", err)
	}
	got, err := readPublicPackage(path)
	if err != nil {
		t.Fatalf("readPublicPackage: %v", err)
	}
	if got.Threshold != dealt[0].Group.Threshold || got.Total != dealt[0].Group.Total {
		t.Fatalf("threshold/total did not round-trip")
	}
	if !got.GroupPublicKey.Equal(&dealt[0].Group.GroupPublicKey) {
		t.Fatalf("group public key did not round-trip")
	}
}

func TestLoadKeyPackagesSortsByHolder(t *testing.T) {
	dealt, err := threshold.GenerateDealt(2, 12, effects.NewSimulated(3))
	if err != nil {
		t.Fatalf("GenerateDealt: %v", err)
	}
	dir := t.TempDir()
	for _, kp := range dealt {
		if err := writeKeyPackage(filepath.Join(dir, holderFileName(kp.Index)), kp); err != nil {
			t.Fatalf("writeKeyPackage: %v", err)
		}
	}

	loaded, err := loadKeyPackages(dir)
	if err != nil {
		t.Fatalf("loadKeyPackages: %v", err)
	}
	if len(loaded) != len(dealt) {
		t.Fatalf("expected %d packages, got %d", len(dealt), len(loaded))
	}
	for i := 1; i < len(loaded); i++ {
		if loaded[i-1].Index >= loaded[i].Index {
			t.Fatalf("expected packages sorted by holder index, got %d before %d", loaded[i-1].Index, loaded[i].Index)
		}
	}
}

func holderFileName(index uint32) string {
	return fmt.Sprintf("holder-%d.key", index)
}
