// Package passwd implements spec.md §4.8's /etc/passwd (and /etc/group)
// grammar: parsing records into structured entries, hashing passwords, and
// serializing back to the exact on-disk text.
//
// Grounded on the teacher's own config-line parsing idiom (flag.go's
// manual field-by-field decode) rather than a general CSV library: the
// grammar is a single fixed-arity colon-delimited record, which a CSV
// reader would only complicate.
package passwd

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/nativerv/eunix/pkg/fserr"
)

// Entry is one /etc/passwd record: name:password:uid:gid:comment:home:shell.
type Entry struct {
	Name     string
	Password string // lower-case hex SHA-256 digest, never the raw password
	UID      uint32
	GID      uint32
	Comment  string
	Home     string
	Shell    string
}

// GroupEntry is one /etc/group record: name:password:gid:members, members
// comma-delimited.
type GroupEntry struct {
	Name     string
	Password string
	GID      uint32
	Members  []string
}

// HashPassword implements spec.md §4.9's password storage rule: lower-case
// hex of the raw password bytes' SHA-256, with no trailing newline added to
// the hashed input.
func HashPassword(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Parse decodes the full text of an /etc/passwd file into its entries, one
// per line. A text ending in "\n" is tolerated (the trailing empty line is
// dropped before splitting into records), but Serialize never emits one, so
// Serialize(Parse(s)) == s for every s with no trailing newline and no
// blank line of its own (spec.md §8 scenario 5).
func Parse(text string) ([]Entry, error) {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		e, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseLine(line string) (Entry, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 7 {
		return Entry{}, fserr.New(fserr.EINVAL, "malformed passwd line: %q", line)
	}
	uid, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return Entry{}, fserr.New(fserr.EINVAL, "malformed uid in passwd line: %q", line)
	}
	gid, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return Entry{}, fserr.New(fserr.EINVAL, "malformed gid in passwd line: %q", line)
	}
	return Entry{
		Name: fields[0], Password: fields[1],
		UID: uint32(uid), GID: uint32(gid),
		Comment: fields[4], Home: fields[5], Shell: fields[6],
	}, nil
}

// Serialize reproduces the exact passwd text for entries: one line per
// entry, joined by "\n", with no trailing newline at EOF — the round-trip
// contract used by spec.md §8 scenario 5 is Serialize(Parse(s)) == s for
// every valid s.
func Serialize(entries []Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		var b strings.Builder
		b.WriteString(e.Name)
		b.WriteByte(':')
		b.WriteString(e.Password)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(e.UID), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(e.GID), 10))
		b.WriteByte(':')
		b.WriteString(e.Comment)
		b.WriteByte(':')
		b.WriteString(e.Home)
		b.WriteByte(':')
		b.WriteString(e.Shell)
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

// ParseGroups decodes the full text of an /etc/group file.
func ParseGroups(text string) ([]GroupEntry, error) {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	entries := make([]GroupEntry, 0, len(lines))
	for _, line := range lines {
		fields := strings.Split(line, ":")
		if len(fields) != 4 {
			return nil, fserr.New(fserr.EINVAL, "malformed group line: %q", line)
		}
		gid, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return nil, fserr.New(fserr.EINVAL, "malformed gid in group line: %q", line)
		}
		var members []string
		if fields[3] != "" {
			members = strings.Split(fields[3], ",")
		}
		entries = append(entries, GroupEntry{
			Name: fields[0], Password: fields[1], GID: uint32(gid), Members: members,
		})
	}
	return entries, nil
}

// SerializeGroups is ParseGroups's inverse: no trailing newline at EOF.
func SerializeGroups(entries []GroupEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		var b strings.Builder
		b.WriteString(e.Name)
		b.WriteByte(':')
		b.WriteString(e.Password)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(e.GID), 10))
		b.WriteByte(':')
		b.WriteString(strings.Join(e.Members, ","))
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

// UIDMap and GIDMap implement spec.md §4.8's uid_map/gid_map: uid/gid to
// name, rebuilt from Parse'd /etc/passwd and /etc/group contents.
type UIDMap map[uint32]string
type GIDMap map[uint32]string

func BuildUIDMap(entries []Entry) UIDMap {
	m := make(UIDMap, len(entries))
	for _, e := range entries {
		m[e.UID] = e.Name
	}
	return m
}

func BuildGIDMap(entries []GroupEntry) GIDMap {
	m := make(GIDMap, len(entries))
	for _, e := range entries {
		m[e.GID] = e.Name
	}
	return m
}
