package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrArtifactInvalid is returned when a compiled contract artifact is missing, unreadable or
// lacks its ABI or bytecode.
var ErrArtifactInvalid = errors.New("artifact invalid")

// DefaultArtifactPath is where Hardhat writes the compiled token contract.
const DefaultArtifactPath = "artifacts/contracts/CustomToken.sol/CustomToken.json"

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	ABI      abi.ABI
	Bytecode []byte
}

// rawArtifact is the subset of a Hardhat or Foundry artifact file that is read. Foundry nests
// the bytecode under an "object" key.
type rawArtifact struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode json.RawMessage `json:"bytecode"`
}

type rawBytecodeObject struct {
	Object string `json:"object"`
}

// LoadArtifact reads and parses the artifact file at path.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrArtifactInvalid, path, err)
	}

	art, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return art, nil
}

// ParseArtifact parses artifact JSON. The bytecode may be a hex string or an object with the hex
// string under "object".
func ParseArtifact(data []byte) (*Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactInvalid, err)
	}

	if isEmptyJSON(raw.ABI) {
		return nil, fmt.Errorf("%w: abi is missing", ErrArtifactInvalid)
	}
	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("%w: abi: %w", ErrArtifactInvalid, err)
	}

	code, err := parseBytecode(raw.Bytecode)
	if err != nil {
		return nil, err
	}

	return &Artifact{ABI: parsed, Bytecode: code}, nil
}

func parseBytecode(raw json.RawMessage) ([]byte, error) {
	if isEmptyJSON(raw) {
		return nil, fmt.Errorf("%w: bytecode is missing", ErrArtifactInvalid)
	}

	var hexCode string
	if err := json.Unmarshal(raw, &hexCode); err != nil {
		var obj rawBytecodeObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: bytecode must be a string or an object: %w", ErrArtifactInvalid, err)
		}
		hexCode = obj.Object
	}

	hexCode = strings.TrimSpace(hexCode)
	if !strings.HasPrefix(hexCode, "0x") {
		hexCode = "0x" + hexCode
	}
	if hexCode == "0x" {
		return nil, fmt.Errorf("%w: bytecode is empty", ErrArtifactInvalid)
	}

	code, err := hexutil.Decode(hexCode)
	if err != nil {
		return nil, fmt.Errorf("%w: bytecode: %w", ErrArtifactInvalid, err)
	}

	return code, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)

	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}
