package pins

import (
	"errors"
	"fmt"
	"strings"

	"hostboot/internal/platform"
)

const (
	ManagerVersion     = "0.8.12"
	InterpreterVersion = "3.12.10"
	RuntimeVersion     = "22.17.0"

	DefaultManagerURL = "https://github.com/astral-sh/uv/releases/download/{version}/uv-{target}.{ext}"
	DefaultRuntimeURL = "https://nodejs.org/dist/v{version}/node-v{version}-win-{arch}.zip"
)

// ErrUnsupportedTarget is returned when no manager digest is pinned for a target.
var ErrUnsupportedTarget = errors.New("unsupported target")

// managerDigests holds the published sha256 of every uv 0.8.12 release archive.
var managerDigests = map[platform.Target]string{
	"aarch64-apple-darwin":           "a3f78d20465c6d18f7072f118ce1c61b164b98698fdc37357e72958c7d1b68fd",
	"aarch64-pc-windows-msvc":        "eb0c7e47411d11cbc3990eef51a5e10215a1fc9d5f5058fd8e952da94be16512",
	"aarch64-unknown-linux-gnu":      "9a8a53df515bd64d423c85ace7ddca08fb9a91d8a115934c4495b5cf74c60ea6",
	"aarch64-unknown-linux-musl":     "de85bafc3e238a4fce87eb6a4e584c9c04721475abb9e5f6fe186bdce650763f",
	"arm-unknown-linux-musleabihf":   "5fe2f13d8c62d410278fbd69b0c1f03be5bd2c40168a98dc8fc82bca64c2eaad",
	"armv7-unknown-linux-gnueabihf":  "6ddde49d5fcc04a90855f31b5cb500146dac23f31d16f6d7fa7da1ae481eab1e",
	"armv7-unknown-linux-musleabihf": "39b626f438c22a3122546445d581fe02b6fc449649b4890f44791af4f3d3c18b",
	"i686-pc-windows-msvc":           "97e0e04648e48cccdd25210f5eaf6fb2d46f1a198983b7de10613faf1629663d",
	"i686-unknown-linux-gnu":         "74484899512bb91ed4bd64d117284c20912c39c600cc775d6ef1bf278d6c2a94",
	"i686-unknown-linux-musl":        "b1e303c231068a3a419b12d3ba4dc852931740ab3ad691c7a87309327eac732f",
	"powerpc64-unknown-linux-gnu":    "455bd841952724bff1f45dad91555ce2a33c837cc8d734ca39afaa0ac3c8385d",
	"powerpc64le-unknown-linux-gnu":  "30f1191e997d8d2845b27f57ce30e8d3643994161b7d099caf81fde22d723fa6",
	"riscv64gc-unknown-linux-gnu":    "1e9e7ca966999161ef5174d28a18777d2a143c081a63d455f5b7fd5a1513d2e7",
	"s390x-unknown-linux-gnu":        "55ec25ef06c1e0c095f2baa1a12ce38879db8db99a4b046286a9573dd3c605d5",
	"x86_64-apple-darwin":            "467b462e854bc750fcad8e3ad35e2aca0d301c9287f2365afad8c17b7672b6a8",
	"x86_64-pc-windows-msvc":         "3fb92ce0860db7cb094ddeeb1ac521532fdd3e61d0a130f7bbc6be54caca7c2e",
	"x86_64-unknown-linux-gnu":       "f976ebdc612e71209f46664ab6c0325fa0090059b4474e047edd39eb9395373b",
	"x86_64-unknown-linux-musl":      "fa682c444b8a57a0984129d0989801fb0406f9238a57df76fdde063c6b2339c2",
}

// Set is the pinned version set used by one bootstrap run. Default returns the
// compiled-in values; tests substitute digests and URL templates.
type Set struct {
	ManagerVersion     string
	InterpreterVersion string
	RuntimeVersion     string
	ManagerURL         string
	RuntimeURL         string
	ManagerDigests     map[platform.Target]string
}

// Default returns the compiled-in pins.
func Default() Set {
	digests := make(map[platform.Target]string, len(managerDigests))
	for k, v := range managerDigests {
		digests[k] = v
	}
	return Set{
		ManagerVersion:     ManagerVersion,
		InterpreterVersion: InterpreterVersion,
		RuntimeVersion:     RuntimeVersion,
		ManagerURL:         DefaultManagerURL,
		RuntimeURL:         DefaultRuntimeURL,
		ManagerDigests:     digests,
	}
}

// WithMirrors replaces the download URL templates. Blank values keep the
// current template.
func (s Set) WithMirrors(managerURL, runtimeURL string) Set {
	if v := strings.TrimSpace(managerURL); v != "" {
		s.ManagerURL = v
	}
	if v := strings.TrimSpace(runtimeURL); v != "" {
		s.RuntimeURL = v
	}
	return s
}

// ManagerDigest returns the expected sha256 of the manager archive for t.
func (s Set) ManagerDigest(t platform.Target) (string, error) {
	digest, ok := s.ManagerDigests[t]
	if !ok || digest == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedTarget, t)
	}
	return digest, nil
}

// ManagerArchiveName is the release file name, e.g. uv-x86_64-unknown-linux-gnu.tar.gz.
func (s Set) ManagerArchiveName(t platform.Target) string {
	return fmt.Sprintf("uv-%s.%s", t, t.ArchiveFormat())
}

// ManagerArchiveURL expands the manager URL template for t.
func (s Set) ManagerArchiveURL(t platform.Target) string {
	return Expand(s.ManagerURL, s.ManagerVersion, t)
}

// RuntimeDirName is the top-level directory inside the runtime archive.
func (s Set) RuntimeDirName(t platform.Target) string {
	return fmt.Sprintf("node-v%s-win-%s", s.RuntimeVersion, t.NodeArch())
}

// RuntimeArchiveURL expands the runtime URL template for t.
func (s Set) RuntimeArchiveURL(t platform.Target) string {
	return Expand(s.RuntimeURL, s.RuntimeVersion, t)
}

// Expand substitutes {version}, {target}, {ext} and {arch} in tmpl.
func Expand(tmpl, version string, t platform.Target) string {
	r := strings.NewReplacer(
		"{version}", version,
		"{target}", t.String(),
		"{ext}", string(t.ArchiveFormat()),
		"{arch}", t.NodeArch(),
	)
	return r.Replace(tmpl)
}
