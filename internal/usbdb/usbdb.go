// Package usbdb resolves vendor, product and class names from the usb.ids
// database shipped by usbutils/hwdata. It backfills the *_FROM_DATABASE
// attributes on platforms whose native registry does not carry them. The
// database is loaded lazily, kept in memory only, and its absence is not an
// error: lookups simply return "".
package usbdb

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
)

// defaultPaths are the usual install locations, probed in order.
var defaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/usr/share/misc/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/usb.ids",
}

type database struct {
	vendors  map[string]string // vid -> vendor name
	products map[string]string // vid:pid -> product name
	classes  map[string]string // class code -> class name
}

var (
	mu     sync.Mutex
	loaded bool
	db     = &database{
		vendors:  map[string]string{},
		products: map[string]string{},
		classes:  map[string]string{},
	}
)

// ensureLoaded probes the default paths once, unless Load already installed
// a database explicitly.
func ensureLoaded() {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return
	}
	loaded = true
	for _, path := range defaultPaths {
		if parsed, err := parseFile(path); err == nil {
			db = parsed
			return
		}
	}
}

// Load parses a usb.ids file and replaces the in-memory database. Mostly a
// test hook; normal use goes through the lazy default-path probing.
func Load(path string) error {
	parsed, err := parseFile(path)
	if err != nil {
		return err
	}
	mu.Lock()
	db = parsed
	loaded = true
	mu.Unlock()
	return nil
}

func parseFile(path string) (*database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f), nil
}

// parse reads the usb.ids format: vendor lines are "vvvv  name" with
// tab-indented "pppp  name" product lines below, and the trailing list
// sections ("C 03  HID", "AT ...", ...) switch the parser mode. Only the
// vendor and class ("C") sections matter here.
func parse(r io.Reader) *database {
	out := &database{
		vendors:  map[string]string{},
		products: map[string]string{},
		classes:  map[string]string{},
	}
	currentVendor := ""
	inClassSection := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !strings.HasPrefix(line, "\t") {
			currentVendor = ""
			inClassSection = false
			switch {
			case strings.HasPrefix(line, "C "):
				if code, name, ok := splitIDLine(line[2:]); ok {
					out.classes[strings.ToLower(code)] = name
					inClassSection = true
				}
			default:
				if vid, name, ok := splitIDLine(line); ok && isHexID(vid, 4) {
					currentVendor = strings.ToLower(vid)
					out.vendors[currentVendor] = name
				}
			}
			continue
		}

		// Tab-indented: product under a vendor, or subclass under a class
		// (subclasses are not part of the schema and are skipped).
		if inClassSection || strings.HasPrefix(line, "\t\t") {
			continue
		}
		if currentVendor == "" {
			continue
		}
		if pid, name, ok := splitIDLine(strings.TrimPrefix(line, "\t")); ok && isHexID(pid, 4) {
			out.products[currentVendor+":"+strings.ToLower(pid)] = name
		}
	}
	return out
}

func splitIDLine(line string) (id, name string, ok bool) {
	id, name, ok = strings.Cut(line, "  ")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(id), strings.TrimSpace(name), name != ""
}

func isHexID(s string, width int) bool {
	if len(s) != width {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func lookup(m func(*database) map[string]string, key string) string {
	ensureLoaded()
	mu.Lock()
	defer mu.Unlock()
	return m(db)[strings.ToLower(key)]
}

// VendorName returns the database name for a 4-hex-digit vendor id, or "".
func VendorName(vid string) string {
	return lookup(func(d *database) map[string]string { return d.vendors }, vid)
}

// ProductName returns the database name for a vendor/product id pair, or "".
func ProductName(vid, pid string) string {
	return lookup(func(d *database) map[string]string { return d.products },
		vid+":"+pid)
}

// ClassName returns the database name for a 2-hex-digit class code, or "".
func ClassName(code string) string {
	return lookup(func(d *database) map[string]string { return d.classes }, code)
}
