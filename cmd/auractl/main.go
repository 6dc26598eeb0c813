// auractl drives threshold key ceremonies from the command line: dealer
// keygen, message signing against a quorum of key-package files, signature
// verification, and guardian-share recovery. Adapted from
// cmd/bls-zk-setup's flag-parsing shape; replaces its dangling
// bls_zkp.RunSetupCLI call with the real threshold machinery in
// pkg/crypto/threshold and pkg/keys.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/keys"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen(os.Args[2:])
	case "sign":
		err = runSign(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "recover":
		err = runRecover(os.Args[2:])
	case "sim":
		err = runSim(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "auractl: unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `auractl — threshold key ceremony CLI

Usage:
  auractl keygen  -t <threshold> -n <participants> -out <dir>
  auractl sign    -key-dir <dir> -message <text> [-out <file>]
  auractl verify  -key-dir <dir> -message <text> -signature <hex-or-file>
  auractl recover -share-dir <dir> -m <quorum> -new-t <t> -new-n <n> -out <dir>
  auractl sim     <scenario.yaml>`)
}

// runKeygen runs dealer-based threshold generation and writes one key
// package file per holder plus the shared public package, following
// pkg/crypto/bls/key_manager.go's hex-encode-then-write-0600 idiom.
func runKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	threshold_ := fs.Uint("t", 3, "signing threshold")
	participants := fs.Uint("n", 5, "total participants")
	outDir := fs.String("out", "./keys", "output directory for key package files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rnd := effects.SystemRandom{}
	dealt, err := threshold.GenerateDealt(uint32(*threshold_), uint32(*participants), rnd)
	if err != nil {
		return fmt.Errorf("keygen: %w", err)
	}

	if err := os.MkdirAll(*outDir, 0o700); err != nil {
		return fmt.Errorf("keygen: create output dir: %w", err)
	}
	for _, kp := range dealt {
		if err := writeKeyPackage(filepath.Join(*outDir, fmt.Sprintf("holder-%d.key", kp.Index)), kp); err != nil {
			return err
		}
	}
	if err := writePublicPackage(filepath.Join(*outDir, "group.pub"), dealt[0].Group); err != nil {
		return err
	}

	fmt.Printf("generated %d-of-%d threshold key set in %s\n", *threshold_, *participants, *outDir)
	return nil
}

// runSign coordinates a full in-process threshold-BLS signing round across
// every key package file found in key-dir, via pkg/keys.CoordinateThresholdSign.
func runSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyDir := fs.String("key-dir", "./keys", "directory holding holder-*.key package files")
	message := fs.String("message", "", "message to sign")
	out := fs.String("out", "", "output file for the signature (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *message == "" {
		return fmt.Errorf("sign: -message is required")
	}

	packages, err := loadKeyPackages(*keyDir)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	sig, err := keys.CoordinateThresholdSign([]byte(*message), packages)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	sigBytes := sig.Point.Bytes()
	sigHex := hex.EncodeToString(sigBytes[:])

	if *out == "" {
		fmt.Println(sigHex)
		return nil
	}
	return os.WriteFile(*out, []byte(sigHex+"\n"), 0o600)
}

// runVerify checks a signature (hex string or file containing one) against
// the group public key package found in key-dir.
func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	keyDir := fs.String("key-dir", "./keys", "directory holding group.pub")
	message := fs.String("message", "", "message that was signed")
	sigArg := fs.String("signature", "", "signature, as hex or a path to a file containing hex")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *message == "" || *sigArg == "" {
		return fmt.Errorf("verify: -message and -signature are required")
	}

	pub, err := readPublicPackage(filepath.Join(*keyDir, "group.pub"))
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	sig, err := parseSignatureArg(*sigArg)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	if threshold.Verify(pub, []byte(*message), sig) {
		fmt.Println("signature valid")
		return nil
	}
	fmt.Println("signature INVALID")
	os.Exit(1)
	return nil
}

// runRecover reconstructs a fresh (new-t, new-n) threshold key set from a
// quorum of guardian-held shares, per pkg/keys.Recover.
func runRecover(args []string) error {
	fs := flag.NewFlagSet("recover", flag.ExitOnError)
	shareDir := fs.String("share-dir", "./guardian-shares", "directory holding guardian holder-*.key files")
	quorum := fs.Uint("m", 3, "guardian quorum required")
	newT := fs.Uint("new-t", 3, "threshold for the recovered key set")
	newN := fs.Uint("new-n", 5, "participant count for the recovered key set")
	outDir := fs.String("out", "./recovered-keys", "output directory for the recovered key packages")
	if err := fs.Parse(args); err != nil {
		return err
	}

	shares, err := loadKeyPackages(*shareDir)
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	dealt, err := keys.Recover(shares, keys.RecoveryPolicy{M: uint32(*quorum), N: uint32(len(shares))}, uint32(*newT), uint32(*newN))
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	if err := os.MkdirAll(*outDir, 0o700); err != nil {
		return fmt.Errorf("recover: create output dir: %w", err)
	}
	for _, kp := range dealt {
		if err := writeKeyPackage(filepath.Join(*outDir, fmt.Sprintf("holder-%d.key", kp.Index)), kp); err != nil {
			return err
		}
	}
	if err := writePublicPackage(filepath.Join(*outDir, "group.pub"), dealt[0].Group); err != nil {
		return err
	}

	fmt.Printf("recovered %d-of-%d threshold key set in %s\n", *newT, *newN, *outDir)
	return nil
}

func parseSignatureArg(arg string) (*threshold.Signature, error) {
	raw := arg
	if data, err := os.ReadFile(arg); err == nil {
		raw = string(data)
	}
	raw = trimNewline(raw)
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode signature hex: %w", err)
	}
	return decodeSignature(b)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
