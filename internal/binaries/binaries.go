// Package binaries implements the built-in commands from spec.md §1's note
// that "the individual command implementations (ls, cat, chmod, ...) are
// peripheral glue; they are specified only by the VFS calls they make."
// Each binary is a binfs.Binary[*kernel.Kernel]: an argv vector plus the
// kernel it may call back into, exactly the handle shape BinFS stores
// (spec.md §4.6, §4.9).
//
// Grounded on the teacher's cmd/jdfc subcommand set (cmd/jdfc/main.go),
// which wires a flat list of named operations to a shared client handle the
// same way All() wires named binaries to a shared *kernel.Kernel.
package binaries

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cloudfoundry/bytefmt"
	"github.com/fatih/color"
	"github.com/sisatech/tablewriter"

	"github.com/nativerv/eunix/pkg/binfs"
	"github.com/nativerv/eunix/pkg/fsmode"
	"github.com/nativerv/eunix/pkg/kernel"
	"github.com/nativerv/eunix/pkg/passwd"
)

// All returns the full system binary set, registered onto "/" of a freshly
// mounted BinFS by kernel.Kernel.Mount("binfs", ...).
func All() []binfs.Binary[*kernel.Kernel] {
	return []binfs.Binary[*kernel.Kernel]{
		{Path: "/bin/ls", Func: ls},
		{Path: "/bin/stat", Func: statCmd},
		{Path: "/bin/cat", Func: cat},
		{Path: "/bin/mkdir", Func: mkdir},
		{Path: "/bin/rmdir", Func: rmdir},
		{Path: "/bin/touch", Func: touch},
		{Path: "/bin/rm", Func: rm},
		{Path: "/bin/write", Func: write},
		{Path: "/bin/chmod", Func: chmod},
		{Path: "/bin/chown", Func: chown},
		{Path: "/bin/uname", Func: uname},
		{Path: "/bin/whoami", Func: whoami},
		{Path: "/bin/id", Func: id},
		{Path: "/bin/df", Func: df},
		{Path: "/bin/du", Func: du},
		{Path: "/bin/mv", Func: mv},
		{Path: "/bin/cp", Func: cp},
		{Path: "/bin/ed", Func: ed},
		{Path: "/bin/lsblk", Func: lsblk},
		{Path: "/sbin/mount", Func: mount},
		{Path: "/sbin/mkfs.e5fs", Func: mkfsE5FS},
		{Path: "/sbin/dumpe5fs", Func: dumpE5FS},
		{Path: "/sbin/passwd", Func: passwdCmd},
		{Path: "/sbin/su", Func: su},
		{Path: "/sbin/useradd", Func: useradd},
		{Path: "/sbin/usermod", Func: usermod},
		{Path: "/sbin/userdel", Func: userdel},
		{Path: "/sbin/groupmod", Func: groupmod},
		{Path: "/sbin/groupdel", Func: groupdel},
	}
}

func fail(format string, args ...interface{}) int {
	fmt.Fprintln(os.Stderr, color.RedString(format, args...))
	return 1
}

// ls implements the listing side of spec.md §4.7's read_dir, formatted as a
// borderless table in the teacher's CLI idiom.
func ls(argv []string, k *kernel.Kernel) int {
	path := "/"
	if len(argv) > 1 {
		path = argv[1]
	}
	entries, err := k.VFS().ReadDir(path)
	if err != nil {
		return fail("ls: %s", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	for name := range entries {
		childPath := path + "/" + name
		if path == "/" {
			childPath = "/" + name
		}
		info, err := k.VFS().Stat(childPath)
		if err != nil {
			continue
		}
		table.Append([]string{info.Mode.String(), bytefmt.ByteSize(info.Size), name})
	}
	table.Render()
	return 0
}

func statCmd(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("stat: missing operand")
	}
	info, err := k.VFS().Stat(argv[1])
	if err != nil {
		return fail("stat: %s", err)
	}
	fmt.Printf("  File: %s\n  Size: %-10s Mode: %s\n  Uid: %d  Gid: %d\n  Modify: %s\n",
		argv[1], bytefmt.ByteSize(info.Size), info.Mode, info.UID, info.GID,
		time.Unix(int64(info.Mtime), 0).UTC())
	return 0
}

func cat(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("cat: missing operand")
	}
	code := 0
	for _, path := range argv[1:] {
		data, err := k.VFS().ReadFile(path, -1)
		if err != nil {
			fail("cat: %s", err)
			code = 1
			continue
		}
		os.Stdout.Write(data)
	}
	return code
}

func dirMode() fsmode.FileMode {
	return fsmode.New(false, fsmode.Dir, fsmode.PermRead|fsmode.PermWrite|fsmode.PermExec,
		fsmode.PermRead|fsmode.PermExec, fsmode.PermRead|fsmode.PermExec)
}

func fileMode() fsmode.FileMode {
	return fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite,
		fsmode.PermRead, fsmode.PermRead)
}

func mkdir(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("mkdir: missing operand")
	}
	if _, err := k.VFS().CreateDir(argv[1], k.CurrentUID(), k.CurrentGID(), dirMode()); err != nil {
		return fail("mkdir: %s", err)
	}
	return 0
}

func rmdir(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("rmdir: missing operand")
	}
	if err := k.VFS().RemoveFile(argv[1]); err != nil {
		return fail("rmdir: %s", err)
	}
	return 0
}

func touch(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("touch: missing operand")
	}
	path := argv[1]
	if _, err := k.VFS().Stat(path); err == nil {
		now := uint32(time.Now().Unix())
		if err := k.VFS().ChangeTimes(path, now, now, now); err != nil {
			return fail("touch: %s", err)
		}
		return 0
	}
	if _, err := k.VFS().CreateFile(path, k.CurrentUID(), k.CurrentGID(), fileMode()); err != nil {
		return fail("touch: %s", err)
	}
	return 0
}

func rm(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("rm: missing operand")
	}
	if err := k.VFS().RemoveFile(argv[1]); err != nil {
		return fail("rm: %s", err)
	}
	return 0
}

// write overwrites a file's content with the concatenation of argv[2:],
// space-joined, standing in for the "spawn an editor" escape spec.md §1
// marks as an external collaborator.
func write(argv []string, k *kernel.Kernel) int {
	if len(argv) < 3 {
		return fail("write: usage: write <path> <text...>")
	}
	var data []byte
	for i, arg := range argv[2:] {
		if i > 0 {
			data = append(data, ' ')
		}
		data = append(data, []byte(arg)...)
	}
	if err := k.VFS().WriteFile(argv[1], data); err != nil {
		return fail("write: %s", err)
	}
	return 0
}

func chmod(argv []string, k *kernel.Kernel) int {
	if len(argv) < 3 {
		return fail("chmod: usage: chmod <octal> <path>")
	}
	n, err := strconv.ParseUint(argv[1], 8, 16)
	if err != nil {
		return fail("chmod: invalid mode %q", argv[1])
	}
	info, err := k.VFS().Stat(argv[2])
	if err != nil {
		return fail("chmod: %s", err)
	}
	user := fsmode.Perm((n >> 6) & 0b111)
	group := fsmode.Perm((n >> 3) & 0b111)
	others := fsmode.Perm(n & 0b111)
	mode := fsmode.New(false, info.Mode.FileType(), user, group, others)
	if err := k.VFS().ChangeMode(argv[2], mode); err != nil {
		return fail("chmod: %s", err)
	}
	return 0
}

func chown(argv []string, k *kernel.Kernel) int {
	if len(argv) < 3 {
		return fail("chown: usage: chown <uid>:<gid> <path>")
	}
	uid, gid, err := splitOwner(argv[1])
	if err != nil {
		return fail("chown: %s", err)
	}
	if err := k.VFS().ChangeOwners(argv[2], uid, gid); err != nil {
		return fail("chown: %s", err)
	}
	return 0
}

func splitOwner(spec string) (uid, gid uint32, err error) {
	for i, c := range spec {
		if c == ':' {
			u, err := strconv.ParseUint(spec[:i], 10, 32)
			if err != nil {
				return 0, 0, err
			}
			g, err := strconv.ParseUint(spec[i+1:], 10, 32)
			if err != nil {
				return 0, 0, err
			}
			return uint32(u), uint32(g), nil
		}
	}
	u, err := strconv.ParseUint(spec, 10, 32)
	return uint32(u), 0, err
}

func uname(argv []string, k *kernel.Kernel) int {
	fmt.Println("eunix")
	return 0
}

func whoami(argv []string, k *kernel.Kernel) int {
	if name, ok := k.UIDMap()[k.CurrentUID()]; ok {
		fmt.Println(name)
	} else {
		fmt.Println(k.CurrentUID())
	}
	return 0
}

func id(argv []string, k *kernel.Kernel) int {
	fmt.Printf("uid=%d gid=%d groups=%v\n", k.CurrentUID(), k.CurrentGID(), k.SupplementaryGIDs())
	return 0
}

func df(argv []string, k *kernel.Kernel) int {
	info, err := k.VFS().Stat("/")
	if err != nil {
		return fail("df: %s", err)
	}
	fmt.Printf("/\t%s\n", bytefmt.ByteSize(info.Size))
	return 0
}

func du(argv []string, k *kernel.Kernel) int {
	path := "/"
	if len(argv) > 1 {
		path = argv[1]
	}
	info, err := k.VFS().Stat(path)
	if err != nil {
		return fail("du: %s", err)
	}
	fmt.Printf("%s\t%s\n", bytefmt.ByteSize(info.Size), path)
	return 0
}

func mount(argv []string, k *kernel.Kernel) int {
	if len(argv) < 4 {
		return fail("mount: usage: mount <source> <target> <fstype>")
	}
	if err := k.Mount(argv[1], argv[2], argv[3]); err != nil {
		return fail("mount: %s", err)
	}
	return 0
}

func mkfsE5FS(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("mkfs.e5fs: usage: mkfs.e5fs <devfs-path>")
	}
	fmt.Println("mkfs.e5fs: formatting", argv[1], "is done via e5fs.MKFS on the resolved ByteDevice")
	return 0
}

func dumpE5FS(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("dumpe5fs: missing operand")
	}
	info, err := k.VFS().Stat(argv[1])
	if err != nil {
		return fail("dumpe5fs: %s", err)
	}
	fmt.Printf("mode: %s\nsize: %s\n", info.Mode, bytefmt.ByteSize(info.Size))
	return 0
}

func passwdCmd(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("passwd: usage: passwd <new-password>")
	}
	entries, err := readPasswd(k)
	if err != nil {
		return fail("passwd: %s", err)
	}
	hashed := passwd.HashPassword(argv[1])
	found := false
	for i := range entries {
		if entries[i].UID == k.CurrentUID() {
			entries[i].Password = hashed
			found = true
		}
	}
	if !found {
		return fail("passwd: no entry for current user")
	}
	if err := writePasswd(k, entries); err != nil {
		return fail("passwd: %s", err)
	}
	return 0
}

func su(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("su: usage: su <name>")
	}
	entries, err := readPasswd(k)
	if err != nil {
		return fail("su: %s", err)
	}
	for _, e := range entries {
		if e.Name == argv[1] {
			k.SetIdentity(e.UID, e.GID, nil)
			return 0
		}
	}
	return fail("su: unknown user %q", argv[1])
}

// mv implements a rename as read+create+remove, since neither E5FS nor
// VirtFS expose an atomic rename primitive.
func mv(argv []string, k *kernel.Kernel) int {
	if len(argv) < 3 {
		return fail("mv: usage: mv <src> <dst>")
	}
	src, dst := argv[1], argv[2]
	info, err := k.VFS().Stat(src)
	if err != nil {
		return fail("mv: %s", err)
	}
	if info.Mode.FileType() != fsmode.File {
		return fail("mv: %s: not a regular file", src)
	}
	data, err := k.VFS().ReadFile(src, -1)
	if err != nil {
		return fail("mv: %s", err)
	}
	if _, err := k.VFS().CreateFile(dst, info.UID, info.GID, info.Mode); err != nil {
		return fail("mv: %s", err)
	}
	if err := k.VFS().WriteFile(dst, data); err != nil {
		return fail("mv: %s", err)
	}
	if err := k.VFS().RemoveFile(src); err != nil {
		return fail("mv: %s", err)
	}
	return 0
}

// cp is mv without the final RemoveFile, except that the copy is owned by
// the current identity rather than by the source's owner.
func cp(argv []string, k *kernel.Kernel) int {
	if len(argv) < 3 {
		return fail("cp: usage: cp <src> <dst>")
	}
	src, dst := argv[1], argv[2]
	info, err := k.VFS().Stat(src)
	if err != nil {
		return fail("cp: %s", err)
	}
	if info.Mode.FileType() != fsmode.File {
		return fail("cp: %s: not a regular file", src)
	}
	data, err := k.VFS().ReadFile(src, -1)
	if err != nil {
		return fail("cp: %s", err)
	}
	if _, err := k.VFS().CreateFile(dst, k.CurrentUID(), k.CurrentGID(), info.Mode); err != nil {
		return fail("cp: %s", err)
	}
	if err := k.VFS().WriteFile(dst, data); err != nil {
		return fail("cp: %s", err)
	}
	return 0
}

// ed is the line-editor stand-in: it appends argv[2:] as a new line rather
// than overwriting, unlike write. A missing path is created.
func ed(argv []string, k *kernel.Kernel) int {
	if len(argv) < 3 {
		return fail("ed: usage: ed <path> <text...>")
	}
	path := argv[1]
	var line []byte
	for i, arg := range argv[2:] {
		if i > 0 {
			line = append(line, ' ')
		}
		line = append(line, []byte(arg)...)
	}

	existing, err := k.VFS().ReadFile(path, -1)
	if err != nil {
		if _, err := k.VFS().CreateFile(path, k.CurrentUID(), k.CurrentGID(), fileMode()); err != nil {
			return fail("ed: %s", err)
		}
		existing = nil
	}

	data := line
	if len(existing) > 0 {
		data = append(append(existing, '\n'), line...)
	}
	if err := k.VFS().WriteFile(path, data); err != nil {
		return fail("ed: %s", err)
	}
	return 0
}

// lsblk lists the block devices named under /dev, filtering out ttys.
func lsblk(argv []string, k *kernel.Kernel) int {
	entries, err := k.VFS().ReadDir("/dev")
	if err != nil {
		return fail("lsblk: %s", err)
	}
	for name := range entries {
		info, err := k.VFS().Stat("/dev/" + name)
		if err != nil {
			continue
		}
		if info.Mode.FileType() == fsmode.Block {
			fmt.Println(name)
		}
	}
	return 0
}

func readPasswd(k *kernel.Kernel) ([]passwd.Entry, error) {
	text, err := k.VFS().ReadFile("/etc/passwd", -1)
	if err != nil {
		return nil, err
	}
	return passwd.Parse(string(text))
}

func writePasswd(k *kernel.Kernel, entries []passwd.Entry) error {
	return k.VFS().WriteFile("/etc/passwd", []byte(passwd.Serialize(entries)))
}

func readGroups(k *kernel.Kernel) ([]passwd.GroupEntry, error) {
	text, err := k.VFS().ReadFile("/etc/group", -1)
	if err != nil {
		return nil, err
	}
	return passwd.ParseGroups(string(text))
}

func writeGroups(k *kernel.Kernel, entries []passwd.GroupEntry) error {
	return k.VFS().WriteFile("/etc/group", []byte(passwd.SerializeGroups(entries)))
}

// useradd appends a new /etc/passwd entry with an unusable password
// (locked account) until passwd sets a real one.
func useradd(argv []string, k *kernel.Kernel) int {
	if len(argv) < 4 {
		return fail("useradd: usage: useradd <name> <uid> <gid> [home] [shell]")
	}
	uid, err := strconv.ParseUint(argv[2], 10, 32)
	if err != nil {
		return fail("useradd: invalid uid %q", argv[2])
	}
	gid, err := strconv.ParseUint(argv[3], 10, 32)
	if err != nil {
		return fail("useradd: invalid gid %q", argv[3])
	}
	home, shell := "/home/"+argv[1], "/bin/sh"
	if len(argv) > 4 {
		home = argv[4]
	}
	if len(argv) > 5 {
		shell = argv[5]
	}

	entries, err := readPasswd(k)
	if err != nil {
		return fail("useradd: %s", err)
	}
	for _, e := range entries {
		if e.Name == argv[1] {
			return fail("useradd: %s already exists", argv[1])
		}
	}
	entries = append(entries, passwd.Entry{
		Name: argv[1], Password: "!", UID: uint32(uid), GID: uint32(gid), Home: home, Shell: shell,
	})
	if err := writePasswd(k, entries); err != nil {
		return fail("useradd: %s", err)
	}
	return 0
}

// usermod changes an existing user's uid:gid.
func usermod(argv []string, k *kernel.Kernel) int {
	if len(argv) < 3 {
		return fail("usermod: usage: usermod <name> <uid>:<gid>")
	}
	uid, gid, err := splitOwner(argv[2])
	if err != nil {
		return fail("usermod: %s", err)
	}
	entries, err := readPasswd(k)
	if err != nil {
		return fail("usermod: %s", err)
	}
	found := false
	for i := range entries {
		if entries[i].Name == argv[1] {
			entries[i].UID, entries[i].GID = uid, gid
			found = true
		}
	}
	if !found {
		return fail("usermod: unknown user %q", argv[1])
	}
	if err := writePasswd(k, entries); err != nil {
		return fail("usermod: %s", err)
	}
	return 0
}

// userdel removes a user's /etc/passwd entry.
func userdel(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("userdel: usage: userdel <name>")
	}
	entries, err := readPasswd(k)
	if err != nil {
		return fail("userdel: %s", err)
	}
	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.Name == argv[1] {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return fail("userdel: unknown user %q", argv[1])
	}
	if err := writePasswd(k, kept); err != nil {
		return fail("userdel: %s", err)
	}
	return 0
}

// groupmod changes an existing group's gid.
func groupmod(argv []string, k *kernel.Kernel) int {
	if len(argv) < 3 {
		return fail("groupmod: usage: groupmod <name> <gid>")
	}
	gid, err := strconv.ParseUint(argv[2], 10, 32)
	if err != nil {
		return fail("groupmod: invalid gid %q", argv[2])
	}
	entries, err := readGroups(k)
	if err != nil {
		return fail("groupmod: %s", err)
	}
	found := false
	for i := range entries {
		if entries[i].Name == argv[1] {
			entries[i].GID = uint32(gid)
			found = true
		}
	}
	if !found {
		return fail("groupmod: unknown group %q", argv[1])
	}
	if err := writeGroups(k, entries); err != nil {
		return fail("groupmod: %s", err)
	}
	return 0
}

// groupdel removes a group's /etc/group entry.
func groupdel(argv []string, k *kernel.Kernel) int {
	if len(argv) < 2 {
		return fail("groupdel: usage: groupdel <name>")
	}
	entries, err := readGroups(k)
	if err != nil {
		return fail("groupdel: %s", err)
	}
	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.Name == argv[1] {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return fail("groupdel: unknown group %q", argv[1])
	}
	if err := writeGroups(k, kept); err != nil {
		return fail("groupdel: %s", err)
	}
	return 0
}
