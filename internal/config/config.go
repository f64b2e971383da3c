// Package config reads and writes the per-remote settings store: a small
// INI-style file keyed by Bluetooth address, mirroring the original Python
// implementation's ConfigParser-backed store one field at a time.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map"
)

// Defaults applied when a field is absent from the store.
const (
	DefaultMouseDelayMs = 20
	DefaultMouseSpeed   = 1.0
)

// Entry is one address's persisted settings. Index is nil until a slot has
// been allocated for the address.
type Entry struct {
	Index        *int
	MouseDelayMs int
	MouseSpeed   float64
}

// Store is a keyed collection of Entry, one per Bluetooth address, with
// section order preserved across Load/Save the way the teacher's
// go-ordered-map preserves insertion order over the USB gadget sysfs file
// list.
type Store struct {
	path     string
	sections *orderedmap.OrderedMap
}

// New returns an empty store bound to path. Call Load to populate it from
// disk, or Save to create it.
func New(path string) *Store {
	return &Store{path: path, sections: orderedmap.New()}
}

// Load reads the store from disk. A missing file is not an error: it is
// treated as an empty store, matching ConfigParser's behavior of silently
// starting empty when the file doesn't exist yet.
func Load(path string) (*Store, error) {
	s := New(path)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := s.parse(f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	var section string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := s.sections.Get(section); !ok {
				s.sections.Set(section, &Entry{MouseDelayMs: DefaultMouseDelayMs, MouseSpeed: DefaultMouseSpeed})
			}
			continue
		}
		if section == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		raw, _ := s.sections.Get(section)
		entry := raw.(*Entry)
		switch strings.ToLower(key) {
		case "index":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("section %s: Index: %w", section, err)
			}
			zeroBased := n - 1
			entry.Index = &zeroBased
		case "mousedelayms":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("section %s: MouseDelayMs: %w", section, err)
			}
			entry.MouseDelayMs = n
		case "mousespeed":
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("section %s: MouseSpeed: %w", section, err)
			}
			entry.MouseSpeed = n
		}
	}
	return scanner.Err()
}

// Get returns the entry for addr and whether one exists.
func (s *Store) Get(addr string) (Entry, bool) {
	raw, ok := s.sections.Get(addr)
	if !ok {
		return Entry{MouseDelayMs: DefaultMouseDelayMs, MouseSpeed: DefaultMouseSpeed}, false
	}
	return *raw.(*Entry), true
}

// SetIndex records the (zero-based) index assigned to addr, creating the
// section if needed and applying defaults to any field left unset, matching
// Config.set_dev_config in the original.
func (s *Store) SetIndex(addr string, zeroBasedIndex int) {
	raw, ok := s.sections.Get(addr)
	var entry *Entry
	if ok {
		entry = raw.(*Entry)
	} else {
		entry = &Entry{MouseDelayMs: DefaultMouseDelayMs, MouseSpeed: DefaultMouseSpeed}
		s.sections.Set(addr, entry)
	}
	entry.Index = &zeroBasedIndex
}

// Save writes the store back to disk in section order, one-based Index on
// disk as the original does ("to favor human editing").
func (s *Store) Save() error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.write(f)
}

func (s *Store) write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for pair := s.sections.Oldest(); pair != nil; pair = pair.Next() {
		addr := pair.Key.(string)
		entry := pair.Value.(*Entry)
		if _, err := fmt.Fprintf(bw, "[%s]\n", addr); err != nil {
			return err
		}
		if entry.Index != nil {
			if _, err := fmt.Fprintf(bw, "Index = %d\n", *entry.Index+1); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(bw, "MouseDelayMs = %d\n", entry.MouseDelayMs); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(bw, "MouseSpeed = %v\n", entry.MouseSpeed); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Addresses returns every known address in section order.
func (s *Store) Addresses() []string {
	out := make([]string, 0, s.sections.Len())
	for pair := s.sections.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key.(string))
	}
	return out
}
