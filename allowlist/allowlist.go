// Package allowlist loads CIDR allowlist files and evaluates IPv4
// membership. An empty list deliberately means "no restriction": the
// feature is disabled by leaving the file path unconfigured, while a
// configured file that yields no usable blocks is a startup error.
package allowlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
)

var (
	// ErrNoValidBlocks is returned when a configured allowlist file parses
	// but contains no usable IPv4 entries.
	ErrNoValidBlocks = errors.New("allowlist file contains no valid entries")

	// ErrInvalidFile is returned when a configured allowlist file cannot be
	// read or decoded.
	ErrInvalidFile = errors.New("unable to parse allowlist file")
)

// prefixFile matches the on-disk JSON shape, a list of prefix objects in
// the style of published cloud IP-range documents. Only ipv4Prefix entries
// are recognized; others are skipped at load time.
type prefixFile struct {
	Prefixes []prefixEntry `json:"prefixes"`
}

type prefixEntry struct {
	IPv4Prefix string `json:"ipv4Prefix"`
	IPv6Prefix string `json:"ipv6Prefix"`
}

// List is an immutable set of IPv4 blocks. Lists are populated once at
// startup and only read afterwards, so no locking is needed on the
// Permits path.
type List struct {
	blocks []netip.Prefix
}

// Load reads the allowlist file at path. An empty path disables the
// feature and returns an empty list. A configured path that is missing,
// unreadable, undecodable, or empty of valid IPv4 entries is an error;
// individual malformed entries are logged and skipped as long as at
// least one valid entry remains.
func Load(path string, log *slog.Logger) (*List, error) {
	if log == nil {
		log = slog.Default()
	}
	if path == "" {
		return &List{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFile, path, err)
	}

	var pf prefixFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFile, path, err)
	}
	if len(pf.Prefixes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoValidBlocks, path)
	}

	var blocks []netip.Prefix
	for _, entry := range pf.Prefixes {
		// only IPv4 blocks are supported for now
		if entry.IPv4Prefix == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(entry.IPv4Prefix)
		if err != nil || !prefix.Addr().Is4() {
			log.Error("skipping invalid allowlist entry",
				"entry", entry.IPv4Prefix, "file", path)
			continue
		}
		blocks = append(blocks, prefix.Masked())
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoValidBlocks, path)
	}

	return &List{blocks: blocks}, nil
}

// Empty reports whether the list carries no blocks, i.e. allows all.
func (l *List) Empty() bool {
	return len(l.blocks) == 0
}

// Len returns the number of loaded blocks.
func (l *List) Len() int {
	return len(l.blocks)
}

// Permits reports whether ipAddress may perform the guarded action. An
// empty list permits every address. Otherwise the address must be a
// valid IPv4 address inside at least one block; boundary addresses of a
// block are inside it.
func (l *List) Permits(ipAddress string) bool {
	if len(l.blocks) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(ipAddress)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return false
	}
	for _, block := range l.blocks {
		if block.Contains(addr) {
			return true
		}
	}
	return false
}
