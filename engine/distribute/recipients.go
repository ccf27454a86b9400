package distribute

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-token-distributor/pkg/logger"
)

// ReadRecipients reads the recipient list at path. See ParseRecipients.
func ReadRecipients(path string, lggr logger.Logger) ([]common.Address, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipient file: %w", err)
	}
	defer f.Close()

	recipients, err := ParseRecipients(f, lggr)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipient file %s: %w", path, err)
	}

	return recipients, nil
}

// ParseRecipients reads one address per line. Lines are trimmed, blank lines are skipped and
// lines that are not an address are dropped with a warning. Order and duplicates are kept.
func ParseRecipients(r io.Reader, lggr logger.Logger) ([]common.Address, error) {
	var (
		recipients []common.Address
		dropped    int
		line       int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if !isAddress(text) {
			lggr.Warnw("Dropping invalid recipient", "line", line, "value", text)
			dropped++

			continue
		}
		recipients = append(recipients, common.HexToAddress(text))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(recipients) == 0 {
		lggr.Warnw("No valid recipient found", "dropped", dropped)
	}

	return recipients, nil
}

// isAddress accepts 40 hex characters with an optional 0x prefix. Mixed case addresses must carry
// a valid EIP-55 checksum.
func isAddress(s string) bool {
	if !common.IsHexAddress(s) {
		return false
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if hex == strings.ToLower(hex) || hex == strings.ToUpper(hex) {
		return true
	}

	return common.HexToAddress(hex).Hex()[2:] == hex
}
