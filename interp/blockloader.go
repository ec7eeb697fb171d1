package interp

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/mod/semver"

	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/executor"
	"github.com/naab-lang/naab/runtime/sandbox"
)

// BlockRecord is the metadata a BlockLoader returns for one registered
// block, per spec.md §6's BlockLoader contract.
type BlockRecord struct {
	BlockID  string
	Name     string
	Language string
	Version  string
	FilePath string
	CodeHash string
	Metadata map[string]any
}

// BlockLoader is implemented by whatever registry backs `use` resolution.
// All lookups may fail with a NotFound-shaped error; the interpreter maps
// that to an Import error carrying suggestions.
type BlockLoader interface {
	GetBlock(id string) (BlockRecord, error)
	LoadSource(id string) ([]byte, error)
	RecordUsage(id string, tokensSaved int) error
	RecordPair(idA, idB string) error
	// KnownIDs lists every registered block id, for "did you mean?"
	// suggestions on a NotFound lookup. May return nil.
	KnownIDs() []string
}

// blockRecordSchema validates the shape of a BlockRecord's Metadata field
// before it's trusted by the interpreter, mirroring the teacher's pattern
// of compiling a jsonschema.Schema once and reusing it across calls.
var blockRecordSchema = mustCompileMetadataSchema()

const metadataSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": true
}`

func mustCompileMetadataSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("block-metadata.json", strings.NewReader(metadataSchemaJSON)); err != nil {
		panic(err)
	}
	schema, err := compiler.Compile("block-metadata.json")
	if err != nil {
		panic(err)
	}
	return schema
}

// BlockResolver resolves `use` statements into *value.Block bindings,
// registering their executor, verifying version compatibility and source
// hash integrity, and recording usage/pairing telemetry per SPEC_FULL.md's
// supplemented accounting features.
type BlockResolver struct {
	loader    BlockLoader
	executors *executor.Registry
	guard     *sandbox.Guard
}

// NewBlockResolver builds a resolver that dispatches loaded blocks to the
// executor registered for each record's language, and gates every load
// behind guard's BLOCK_LOAD capability check.
func NewBlockResolver(loader BlockLoader, executors *executor.Registry, guard *sandbox.Guard) *BlockResolver {
	return &BlockResolver{loader: loader, executors: executors, guard: guard}
}

// Resolve implements one `use path as alias [@ versionReq]` statement: it
// fetches the block record, validates its metadata shape, checks
// versionReq (if non-empty) against the record's declared version, loads
// and hash-verifies the source, and returns a *value.Block bound to the
// language's registered executor.
func (r *BlockResolver) Resolve(loc errors.Location, path, versionReq string) (*value.Block, error) {
	if err := r.guard.CheckBlockLoad(path); err != nil {
		return nil, err
	}

	record, err := r.loader.GetBlock(path)
	if err != nil {
		return nil, errors.ImportError(loc, path, r.loader.KnownIDs())
	}

	if err := validateMetadataShape(record.Metadata); err != nil {
		return nil, errors.New(errors.Import, loc, "block %q has malformed metadata: %s", path, err).WithCode("E205")
	}

	if versionReq != "" {
		if err := checkVersionCompatible(record.Version, versionReq); err != nil {
			return nil, errors.New(errors.Import, loc, "block %q version %s incompatible with %s", path, record.Version, versionReq).WithCode("E206")
		}
	}

	source, err := r.loader.LoadSource(path)
	if err != nil {
		return nil, errors.New(errors.Import, loc, "block %q: failed to load source: %s", path, err).WithCode("E207")
	}

	if record.CodeHash != "" {
		got := hashSource(source)
		if got != record.CodeHash {
			_ = r.guard.LogHashMismatch(path, record.CodeHash, got)
			return nil, errors.New(errors.Import, loc, "block %q source hash mismatch: recorded %s, loaded %s", path, record.CodeHash, got).WithCode("E208")
		}
	}

	exec, err := r.executors.Lookup(record.Language)
	if err != nil {
		return nil, errors.New(errors.Import, loc, "block %q: no executor registered for language %q", path, record.Language).WithCode("E209")
	}

	_ = r.loader.RecordUsage(path, 0)

	return &value.Block{
		Metadata: value.BlockMetadata{
			ID:       record.BlockID,
			Language: record.Language,
			Version:  record.Version,
			Hash:     record.CodeHash,
		},
		Source:      source,
		ExecutorRef: exec,
	}, nil
}

// RecordPairing reports that the blocks identified by idA and idB
// co-executed within the same scheduler wave, per SPEC_FULL.md §18's
// restored pairing telemetry. Failures are swallowed: pairing accounting
// is best-effort and must never fail a script that otherwise succeeded.
func (r *BlockResolver) RecordPairing(idA, idB string) {
	if idA == "" || idB == "" {
		return
	}
	_ = r.loader.RecordPair(idA, idB)
}

// hashSource returns the lowercase hex SHA-256 digest of source, the same
// algorithm the block registry uses to stamp a record's CodeHash.
func hashSource(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// validateMetadataShape runs metadata through the compiled block-record
// schema. The schema is intentionally permissive (any object is valid) —
// its job is to reject non-object metadata, not to constrain the registry's
// vocabulary, which this core has no opinion on.
func validateMetadataShape(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}
	return blockRecordSchema.Validate(metadata)
}

// checkVersionCompatible reports an error if declared does not satisfy
// req. req is either an exact version ("1.2.3") or a minimum-version
// constraint (">=1.2.3"); anything else is rejected as malformed.
func checkVersionCompatible(declared, req string) error {
	declaredSV := toSemver(declared)
	if !semver.IsValid(declaredSV) {
		return fmt.Errorf("block declares invalid version %q", declared)
	}

	if min, ok := strings.CutPrefix(req, ">="); ok {
		reqSV := toSemver(strings.TrimSpace(min))
		if !semver.IsValid(reqSV) {
			return fmt.Errorf("malformed version requirement %q", req)
		}
		if semver.Compare(declaredSV, reqSV) < 0 {
			return fmt.Errorf("%s does not satisfy %s", declared, req)
		}
		return nil
	}

	reqSV := toSemver(req)
	if !semver.IsValid(reqSV) {
		return fmt.Errorf("malformed version requirement %q", req)
	}
	if semver.Compare(declaredSV, reqSV) != 0 {
		return fmt.Errorf("%s does not equal required %s", declared, req)
	}
	return nil
}

// toSemver prefixes v with "v" if needed, since golang.org/x/mod/semver
// requires the leading "v" that NAAb block versions (e.g. "1.2.3") omit.
func toSemver(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
