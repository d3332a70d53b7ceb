// Package kernel is the small owner glue from spec.md §4.8: the VFS
// instance, the DeviceTable, uid/gid maps, current identity, and the
// mount/dispatch operations built on top of those. It is generic over
// nothing itself, but the BinFS it mounts is parameterised by *Kernel, so
// every registered binary receives a pointer back into this same state
// (spec.md §9: "the kernel value is threaded explicitly to every binary
// handle").
//
// Grounded on the teacher's top-level server state in pkg/jdfs/fsd.go
// (rootFSD: device bindings, mount table, identity), generalized here from
// one served root to an arbitrary mount table and from host-process uid/gid
// to the emulated uid/gid model of spec.md §4.8.
package kernel

import (
	"github.com/nativerv/eunix/pkg/binfs"
	"github.com/nativerv/eunix/pkg/bytedev"
	"github.com/nativerv/eunix/pkg/devfs"
	"github.com/nativerv/eunix/pkg/e5fs"
	"github.com/nativerv/eunix/pkg/fserr"
	"github.com/nativerv/eunix/pkg/machine"
	"github.com/nativerv/eunix/pkg/passwd"
	"github.com/nativerv/eunix/pkg/vfs"
)

// BinaryProvider returns the system binaries to register on a fresh BinFS
// mount. It is injected at construction rather than imported directly, so
// this package never depends on internal/binaries (which depends on
// *Kernel, and would otherwise cycle back here).
type BinaryProvider func() []binfs.Binary[*Kernel]

// DeviceOpener opens the host resource backing a DevFS device-table entry.
type DeviceOpener func(path string) (bytedev.ByteDevice, error)

const binfsCapacity = 128

// Kernel is spec.md §4.8's state bundle.
type Kernel struct {
	vfs        *vfs.VFS
	devices    machine.DeviceTable
	binaries   BinaryProvider
	openDevice DeviceOpener

	uidMap passwd.UIDMap
	gidMap passwd.GIDMap

	currentUID        uint32
	currentGID        uint32
	supplementaryGIDs []uint32
}

func defaultOpener(path string) (bytedev.ByteDevice, error) {
	return bytedev.OpenFile(path, 0, false)
}

// New constructs a Kernel with ROOT_UID as the current identity and no
// mounts yet; the caller is expected to mount devfs at "/dev", binfs at
// "/bin", and e5fs at "/" (Mount(source, target, fsType)) before invoking
// binaries.
func New(devices machine.DeviceTable, binaries BinaryProvider, opener DeviceOpener) *Kernel {
	if opener == nil {
		opener = defaultOpener
	}
	k := &Kernel{
		vfs:        vfs.New(),
		devices:    devices,
		binaries:   binaries,
		openDevice: opener,
		currentUID: vfs.RootUID,
	}
	k.vfs.SetIdentity(vfs.Identity{UID: k.currentUID})
	return k
}

// VFS exposes the Kernel's VFS instance to binaries, which see it as their
// only I/O surface (spec.md §1).
func (k *Kernel) VFS() *vfs.VFS { return k.vfs }

func (k *Kernel) CurrentUID() uint32          { return k.currentUID }
func (k *Kernel) CurrentGID() uint32          { return k.currentGID }
func (k *Kernel) SupplementaryGIDs() []uint32 { return k.supplementaryGIDs }
func (k *Kernel) UIDMap() passwd.UIDMap       { return k.uidMap }
func (k *Kernel) GIDMap() passwd.GIDMap       { return k.gidMap }

// SetIdentity changes the current identity and immediately propagates it
// into the VFS (spec.md §4.8's update_vfs_current_uid_gid).
func (k *Kernel) SetIdentity(uid, gid uint32, supplementary []uint32) {
	k.currentUID = uid
	k.currentGID = gid
	k.supplementaryGIDs = supplementary
	k.UpdateVFSCurrentUIDGID()
}

// UpdateVFSCurrentUIDGID implements spec.md §4.8's operation of the same
// name: propagate current-identity changes into the VFS.
func (k *Kernel) UpdateVFSCurrentUIDGID() {
	k.vfs.SetIdentity(vfs.Identity{UID: k.currentUID, GID: k.currentGID, SupplementaryGIDs: k.supplementaryGIDs})
}

// Mount implements spec.md §4.8's mount(source, target, fs_type).
func (k *Kernel) Mount(source, target, fsType string) error {
	if k.currentUID != vfs.RootUID {
		return fserr.New(fserr.EPERM, "mount %s: not root", target)
	}
	switch fsType {
	case "devfs":
		fs, err := devfs.New(k.devices, k.openDevice)
		if err != nil {
			return err
		}
		return k.vfs.Mount(target, vfs.DevFSAdapter{FS: fs})

	case "binfs":
		fs := binfs.New[*Kernel](binfsCapacity)
		if k.binaries != nil {
			if err := fs.AddBins(k.binaries()); err != nil {
				return err
			}
		}
		return k.vfs.Mount(target, vfs.BinFSAdapter[*Kernel]{FS: fs})

	case "e5fs":
		dev, err := k.resolveDeviceSource(source)
		if err != nil {
			return err
		}
		fs, err := e5fs.Open(dev)
		if err != nil {
			return err
		}
		return k.vfs.Mount(target, vfs.E5FSAdapter{FS: fs})

	default:
		return fserr.New(fserr.EINVAL, "unknown filesystem type %q", fsType)
	}
}

// resolveDeviceSource requires source to live under a mounted DevFS and
// returns the already-open ByteDevice behind it.
func (k *Kernel) resolveDeviceSource(source string) (bytedev.ByteDevice, error) {
	_, rel, fs, err := k.vfs.MatchMountPoint(source)
	if err != nil {
		return nil, err
	}
	resolver, ok := fs.(vfs.DeviceResolver)
	if !ok {
		return nil, fserr.New(fserr.EINVAL, "%s does not live under a devfs mount", source)
	}
	return resolver.Device(rel)
}

// UpdateUIDGIDMaps implements spec.md §4.8's operation of the same name:
// read /etc/passwd and /etc/group via the VFS and rebuild uid_map/gid_map.
func (k *Kernel) UpdateUIDGIDMaps() error {
	passwdText, err := k.vfs.ReadFile("/etc/passwd", -1)
	if err != nil {
		return err
	}
	entries, err := passwd.Parse(string(passwdText))
	if err != nil {
		return err
	}
	k.uidMap = passwd.BuildUIDMap(entries)

	groupText, err := k.vfs.ReadFile("/etc/group", -1)
	if err != nil {
		return err
	}
	groups, err := passwd.ParseGroups(string(groupText))
	if err != nil {
		return err
	}
	k.gidMap = passwd.BuildGIDMap(groups)
	return nil
}

// Run implements spec.md §4.9's binary dispatcher: argv[0] is a BinFS path,
// resolved through whichever mount covers it, invoked with (argv, k).
func (k *Kernel) Run(argv []string) (int, error) {
	if len(argv) == 0 {
		return 0, fserr.New(fserr.EINVAL, "empty argv")
	}
	path := argv[0]
	if err := k.vfs.CheckExec(path); err != nil {
		return 0, err
	}
	_, rel, fs, err := k.vfs.MatchMountPoint(path)
	if err != nil {
		return 0, err
	}
	lookup, ok := fs.(vfs.BinaryLookup[*Kernel])
	if !ok {
		return 0, fserr.New(fserr.ENOENT, "%s is not a binary", path)
	}
	handle, err := lookup.LookupBinary(rel)
	if err != nil {
		return 0, err
	}
	return handle.Func(argv, k), nil
}
