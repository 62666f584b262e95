package sqcrab

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/pierrec/lz4/v4"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"github.com/zeebo/xxh3"
)

// A precompiled unit is laid out as
//
//	magic(4) version(1) xxh3(8, little endian) lz4 frame of a cbor payload
//
// The engine has no serializable bytecode, so the payload carries source
// that was verified to compile when the unit was packed.
const (
	unitMagic   = "SQCU"
	unitVersion = 1
	unitHeader  = len(unitMagic) + 1 + 8
)

type compiledUnit struct {
	Name   string `cbor:"1,keyasint"`
	Source string `cbor:"2,keyasint"`
	Engine string `cbor:"3,keyasint"`
}

// IsPrecompiled reports whether data starts like a precompiled unit.
func IsPrecompiled(data []byte) bool {
	return len(data) >= len(unitMagic) && string(data[:len(unitMagic)]) == unitMagic
}

// Precompile checks that src compiles and packs it into a unit that
// ImportBytes accepts.
func Precompile(src string, sourceName string) ([]byte, error) {
	if _, err := compileSource(src, sourceName); err != nil {
		return nil, err
	}

	payload, err := cbor.Marshal(compiledUnit{
		Name:   sourceName,
		Source: src,
		Engine: lua.LuaVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("could not encode unit: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(unitMagic)
	buf.WriteByte(unitVersion)
	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], xxh3.Hash(payload))
	buf.Write(sum[:])

	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("could not compress unit: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("could not compress unit: %w", err)
	}

	return buf.Bytes(), nil
}

func unpackUnit(data []byte) (*compiledUnit, error) {
	if len(data) < unitHeader || !IsPrecompiled(data) {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidUnit)
	}
	if data[len(unitMagic)] != unitVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidUnit, data[len(unitMagic)])
	}

	sum := binary.LittleEndian.Uint64(data[len(unitMagic)+1 : unitHeader])
	payload, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data[unitHeader:])))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUnit, err)
	}
	if xxh3.Hash(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidUnit)
	}

	unit := &compiledUnit{}
	if err := cbor.Unmarshal(payload, unit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUnit, err)
	}

	return unit, nil
}

func compileSource(src string, sourceName string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(src), sourceName)
	if err != nil {
		return nil, newCompileError(sourceName, err)
	}

	proto, err := lua.Compile(chunk, sourceName)
	if err != nil {
		return nil, newCompileError(sourceName, err)
	}

	return proto, nil
}

func newCompileError(sourceName string, err error) *CompileError {
	var perr *parse.Error
	if errors.As(err, &perr) {
		source := perr.Pos.Source
		if source == "" {
			source = sourceName
		}
		return &CompileError{
			Desc:   perr.Message,
			Source: source,
			Line:   perr.Pos.Line,
			Column: perr.Pos.Column,
		}
	}

	return &CompileError{
		Desc:   err.Error(),
		Source: sourceName,
	}
}
