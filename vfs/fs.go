// Package vfs packages flash dumps into a FAT32 disk image, so a recovered
// log can be mounted on any PC.
package vfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/diskfs/go-diskfs/partition/mbr"
)

// MinImageSize is the smallest image Create will make. FAT32 needs a few
// megabytes of its own before any data fits.
const MinImageSize = 16 * fat32.MB

const SECTOR_SIZE = 512
const START = 2048

// Image is a FAT32 disk image with one partition. Dumps are stored as
// numbered .BIN files in a directory named after the volume label.
type Image struct {
	filesystem.FileSystem
	Path    string
	dir     string
	dumps   int
	closefn func() error
}

// sanitizeName takes a file name and converts it to DOS format
// by uppercasing, limiting to ASCII letters, and triming to 8 chars
func sanitizeName(name string) string {
	// https://en.wikipedia.org/wiki/8.3_filename
	newName := make([]rune, 0, max(len(name), 8))
	for _, r := range []rune(strings.ToUpper(name)) {
		if len(newName) == 8 {
			break
		}
		if r >= 'A' && r <= 'Z' {
			newName = append(newName, r)
		}
	}
	return string(newName)
}

// ImageSize returns an image size large enough to hold dumps totalling
// data bytes.
func ImageSize(data int64) int64 {
	// leave room for the partition offset, FATs and directory clusters
	return max(MinImageSize, data+data/8+MinImageSize)
}

// Create makes a new image file at path. Label names both the volume and
// the dump directory; an empty label stores dumps in the root.
func Create(path string, size int64, label string) (*Image, error) {
	if size < MinImageSize {
		return nil, fmt.Errorf("vfs: image size %d below minimum %d", size, MinImageSize)
	}
	dsk, err := diskfs.Create(path, size, diskfs.SectorSizeDefault)
	if err != nil {
		return nil, err
	}

	// create an MBR with one partition
	table := &mbr.Table{
		LogicalSectorSize:  SECTOR_SIZE,
		PhysicalSectorSize: SECTOR_SIZE,
		Partitions: []*mbr.Partition{
			{
				Bootable: false,
				Type:     mbr.Fat32LBA,
				Start:    START,
				Size:     uint32(size/SECTOR_SIZE) - START,
			},
		},
	}
	if err := dsk.Partition(table); err != nil {
		defer os.Remove(path)
		return nil, err
	}

	volume := sanitizeName(label)
	fatfs, err := dsk.CreateFilesystem(disk.FilesystemSpec{
		Partition:   1,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: volumeLabel(volume),
	})
	if err != nil {
		defer os.Remove(path)
		return nil, err
	}

	img := &Image{
		FileSystem: fatfs,
		Path:       path,
		closefn:    func() error { return nil },
	}
	if volume != "" {
		img.dir = "/" + volume
		if err := img.Mkdir(img.dir); err != nil {
			defer os.Remove(path)
			return nil, fmt.Errorf("vfs: create %v: %w", img.dir, err)
		}
	}
	return img, nil
}

func volumeLabel(name string) string {
	if name == "" {
		return "FLASHDUMP"
	}
	return name
}

// CreateTemp makes an image backed by a temporary file which Close removes.
func CreateTemp(size int64, label string) (*Image, error) {
	tmpdir, err := os.MkdirTemp("", "tonttuflash")
	if err != nil {
		return nil, err
	}
	img, err := Create(filepath.Join(tmpdir, "disk.img"), size, label)
	if err != nil {
		os.Remove(tmpdir)
		return nil, err
	}
	img.closefn = func() error {
		if err := os.Remove(img.Path); err != nil {
			return err
		}
		return os.Remove(tmpdir)
	}
	return img, nil
}

// AddDump copies r into the next numbered dump file and returns its path
// inside the image and the number of bytes written.
func (im *Image) AddDump(r io.Reader) (string, int64, error) {
	if im.dumps > 99 {
		return "", 0, fmt.Errorf("vfs: image already holds %d dumps", im.dumps)
	}
	fname := fmt.Sprintf("%v/DUMP%02d.BIN", im.dir, im.dumps)
	file, err := im.OpenFile(fname, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return "", 0, fmt.Errorf("vfs: create %v: %w", fname, err)
	}
	defer file.Close()

	n, err := io.Copy(file, r)
	if err != nil {
		return fname, n, fmt.Errorf("vfs: write %v: %w", fname, err)
	}
	im.dumps++
	return fname, n, nil
}

// Dumps returns the paths of the dumps added so far, in order.
func (im *Image) Dumps() []string {
	paths := make([]string, im.dumps)
	for i := range paths {
		paths[i] = fmt.Sprintf("%v/DUMP%02d.BIN", im.dir, i)
	}
	return paths
}

func (im *Image) Close() error {
	return im.closefn()
}
