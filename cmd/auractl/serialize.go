package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/hxrts/aura/pkg/crypto/threshold"
)

// Key package and public package files are a small hex-encoded line format,
// following pkg/crypto/bls/key_manager.go's hex.EncodeToString(x.Bytes())
// idiom rather than a binary or protobuf encoding — these files are meant
// to be inspected and diffed by a human running a ceremony by hand.

func writeKeyPackage(path string, kp threshold.KeyPackage) error {
	shareBytes := kp.Share.Bytes()
	pub := kp.Group.GroupPublicKey.Bytes()

	var sb strings.Builder
	fmt.Fprintf(&sb, "index=%d\n", kp.Index)
	fmt.Fprintf(&sb, "threshold=%d\n", kp.Group.Threshold)
	fmt.Fprintf(&sb, "total=%d\n", kp.Group.Total)
	fmt.Fprintf(&sb, "share=%s\n", hex.EncodeToString(shareBytes[:]))
	fmt.Fprintf(&sb, "group_public_key=%s\n", hex.EncodeToString(pub[:]))
	for _, idx := range sortedKeys(kp.Group.VerificationShares) {
		vs := kp.Group.VerificationShares[idx]
		vsBytes := vs.Bytes()
		fmt.Fprintf(&sb, "verification_share[%d]=%s\n", idx, hex.EncodeToString(vsBytes[:]))
	}
	return os.WriteFile(path, []byte(sb.String()), 0o600)
}

func writePublicPackage(path string, pub threshold.PublicKeyPackage) error {
	groupBytes := pub.GroupPublicKey.Bytes()

	var sb strings.Builder
	fmt.Fprintf(&sb, "threshold=%d\n", pub.Threshold)
	fmt.Fprintf(&sb, "total=%d\n", pub.Total)
	fmt.Fprintf(&sb, "group_public_key=%s\n", hex.EncodeToString(groupBytes[:]))
	for _, idx := range sortedKeys(pub.VerificationShares) {
		vs := pub.VerificationShares[idx]
		vsBytes := vs.Bytes()
		fmt.Fprintf(&sb, "verification_share[%d]=%s\n", idx, hex.EncodeToString(vsBytes[:]))
	}
	return os.WriteFile(path, []byte(sb.String()), 0o600)
}

func readPublicPackage(path string) (threshold.PublicKeyPackage, error) {
	fields, err := readKeyValueFile(path)
	if err != nil {
		return threshold.PublicKeyPackage{}, err
	}
	pub, err := parsePublicPackage(fields)
	if err != nil {
		return threshold.PublicKeyPackage{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return pub, nil
}

func readKeyPackageFile(path string) (threshold.KeyPackage, error) {
	fields, err := readKeyValueFile(path)
	if err != nil {
		return threshold.KeyPackage{}, err
	}

	index, err := strconv.ParseUint(fields["index"], 10, 32)
	if err != nil {
		return threshold.KeyPackage{}, fmt.Errorf("parse %s: bad index: %w", path, err)
	}
	shareBytes, err := hex.DecodeString(fields["share"])
	if err != nil {
		return threshold.KeyPackage{}, fmt.Errorf("parse %s: bad share: %w", path, err)
	}
	var share fr.Element
	share.SetBytes(shareBytes)

	pub, err := parsePublicPackage(fields)
	if err != nil {
		return threshold.KeyPackage{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return threshold.KeyPackage{Index: uint32(index), Share: share, Group: pub}, nil
}

func parsePublicPackage(fields map[string]string) (threshold.PublicKeyPackage, error) {
	t, err := strconv.ParseUint(fields["threshold"], 10, 32)
	if err != nil {
		return threshold.PublicKeyPackage{}, fmt.Errorf("bad threshold: %w", err)
	}
	n, err := strconv.ParseUint(fields["total"], 10, 32)
	if err != nil {
		return threshold.PublicKeyPackage{}, fmt.Errorf("bad total: %w", err)
	}
	groupBytes, err := hex.DecodeString(fields["group_public_key"])
	if err != nil {
		return threshold.PublicKeyPackage{}, fmt.Errorf("bad group_public_key: %w", err)
	}
	var group bls12381.G2Affine
	if _, err := group.SetBytes(groupBytes); err != nil {
		return threshold.PublicKeyPackage{}, fmt.Errorf("decode group_public_key: %w", err)
	}

	shares := make(map[uint32]bls12381.G2Affine)
	for key, value := range fields {
		if !strings.HasPrefix(key, "verification_share[") {
			continue
		}
		idxStr := strings.TrimSuffix(strings.TrimPrefix(key, "verification_share["), "]")
		idx, err := strconv.ParseUint(idxStr, 10, 32)
		if err != nil {
			return threshold.PublicKeyPackage{}, fmt.Errorf("bad verification share index %q: %w", idxStr, err)
		}
		vsBytes, err := hex.DecodeString(value)
		if err != nil {
			return threshold.PublicKeyPackage{}, fmt.Errorf("bad verification share %d: %w", idx, err)
		}
		var vs bls12381.G2Affine
		if _, err := vs.SetBytes(vsBytes); err != nil {
			return threshold.PublicKeyPackage{}, fmt.Errorf("decode verification share %d: %w", idx, err)
		}
		shares[uint32(idx)] = vs
	}

	return threshold.PublicKeyPackage{
		Threshold:          uint32(t),
		Total:              uint32(n),
		GroupPublicKey:     group,
		VerificationShares: shares,
	}, nil
}

func decodeSignature(b []byte) (*threshold.Signature, error) {
	var point bls12381.G1Affine
	if _, err := point.SetBytes(b); err != nil {
		return nil, fmt.Errorf("decode signature point: %w", err)
	}
	return &threshold.Signature{Point: point}, nil
}

// loadKeyPackages reads every holder-*.key file in dir, sorted by holder
// index, so the resulting slice is deterministic across runs.
func loadKeyPackages(dir string) ([]threshold.KeyPackage, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "holder-*.key"))
	if err != nil {
		return nil, fmt.Errorf("list key packages in %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no holder-*.key files found in %s", dir)
	}
	sort.Strings(matches)

	packages := make([]threshold.KeyPackage, 0, len(matches))
	for _, path := range matches {
		kp, err := readKeyPackageFile(path)
		if err != nil {
			return nil, err
		}
		packages = append(packages, kp)
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Index < packages[j].Index })
	return packages, nil
}

func readKeyValueFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fields := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		fields[parts[0]] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return fields, nil
}

func sortedKeys(m map[uint32]bls12381.G2Affine) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
