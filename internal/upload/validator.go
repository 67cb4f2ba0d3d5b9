package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Attempt is the ephemeral unit of work: a spooled temp file plus the
// client-declared name, platform, and the byte count measured at spool time.
type Attempt struct {
	Path         string
	OriginalName string
	Size         int64
	Platform     string
}

// Artifact describes an accepted upload. The caller owns the move from temp
// to permanent storage; the validator never touches the permanent store.
type Artifact struct {
	Size        int64
	Checksum    string
	Scan        ScanResult
	ValidatedAt time.Time
}

// stage inspects the attempt and either fills in part of the artifact or
// returns a terminal rejection.
type stage func(a *Attempt, p *Policy, out *Artifact) *Rejection

// Validator runs the ordered short-circuiting check chain. Cheap syntactic
// stages run before any content is read, so malformed uploads never pay for
// hashing.
type Validator struct {
	policy Policy
	stages []stage
	lg     *zap.SugaredLogger
}

func NewValidator(policy Policy, lg *zap.SugaredLogger) *Validator {
	return &Validator{
		policy: policy,
		stages: []stage{
			checkExtension,
			checkSize,
			checkMagic,
			computeChecksum,
			runScan,
		},
		lg: lg,
	}
}

// Validate evaluates every stage in order against the attempt. The first
// failing stage aborts the chain. On any non-nil error — rejection, internal
// fault, or a panic escaping a stage — the temp file is deleted before
// Validate returns; no rejected attempt leaves a file behind.
func (v *Validator) Validate(a Attempt) (art Artifact, err error) {
	defer func() {
		if p := recover(); p != nil {
			v.discard(a.Path)
			panic(p)
		}
		if err != nil {
			v.discard(a.Path)
		}
	}()

	for _, run := range v.stages {
		if rej := run(&a, &v.policy, &art); rej != nil {
			if rej.Kind == ValidationFailed {
				v.lg.Errorw("upload validation fault",
					"file", a.OriginalName, "error", rej.Message)
			} else {
				v.lg.Infow("upload rejected",
					"file", a.OriginalName, "kind", rej.Kind, "message", rej.Message)
			}
			return Artifact{}, rej
		}
	}

	art.Size = a.Size
	art.ValidatedAt = time.Now()
	v.lg.Infow("upload validation passed",
		"file", a.OriginalName,
		"size", formatMB(a.Size),
		"checksum", art.Checksum[:16]+"...")
	return art, nil
}

func (v *Validator) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		v.lg.Errorw("temp file cleanup failed", "path", path, "error", err)
	}
}

func checkExtension(a *Attempt, p *Policy, _ *Artifact) *Rejection {
	want, ok := p.Extensions[a.Platform]
	if !ok {
		return &Rejection{
			Kind:    InvalidFileType,
			Message: fmt.Sprintf("unknown platform %q", a.Platform),
		}
	}
	if strings.ToLower(filepath.Ext(a.OriginalName)) != want {
		return &Rejection{
			Kind:    InvalidFileType,
			Message: fmt.Sprintf("only %s files are allowed for %s", want, a.Platform),
		}
	}
	return nil
}

func checkSize(a *Attempt, p *Policy, _ *Artifact) *Rejection {
	if a.Size < p.MinBytes {
		return &Rejection{
			Kind:      FileTooSmall,
			Message:   fmt.Sprintf("package must be at least %s, got %s", formatMB(p.MinBytes), formatMB(a.Size)),
			SizeBytes: a.Size,
		}
	}
	if a.Size > p.MaxBytes {
		return &Rejection{
			Kind:      FileTooLarge,
			Message:   fmt.Sprintf("package must be at most %s, got %s", formatMB(p.MaxBytes), formatMB(a.Size)),
			SizeBytes: a.Size,
		}
	}
	return nil
}

func checkMagic(a *Attempt, p *Policy, _ *Artifact) *Rejection {
	f, err := os.Open(a.Path)
	if err != nil {
		return fault("open for signature check", err)
	}
	defer f.Close()

	header := make([]byte, len(p.Magic))
	if _, err := io.ReadFull(f, header); err != nil {
		return &Rejection{
			Kind:    InvalidFormat,
			Message: "file is too short to carry a container signature",
		}
	}
	for i := range p.Magic {
		if header[i] != p.Magic[i] {
			detected := ""
			if mt, err := mimetype.DetectFile(a.Path); err == nil {
				detected = mt.String()
			}
			return &Rejection{
				Kind:     InvalidFormat,
				Message:  "missing ZIP container signature (PK header)",
				Detected: detected,
			}
		}
	}
	return nil
}

func computeChecksum(a *Attempt, _ *Policy, out *Artifact) *Rejection {
	f, err := os.Open(a.Path)
	if err != nil {
		return fault("open for checksum", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fault("hash content", err)
	}
	out.Checksum = hex.EncodeToString(h.Sum(nil))
	return nil
}

func runScan(a *Attempt, p *Policy, out *Artifact) *Rejection {
	res, err := p.Scanner.Scan(a.Path, a.OriginalName, a.Size)
	if err != nil {
		return fault("security scan", err)
	}
	if !res.Clean {
		return &Rejection{
			Kind:    SecurityScanFailed,
			Message: "file did not pass security checks",
			Threats: res.Threats,
		}
	}
	out.Scan = res
	return nil
}

func fault(op string, err error) *Rejection {
	return &Rejection{
		Kind:    ValidationFailed,
		Message: fmt.Sprintf("%s: %v", op, err),
	}
}
