// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ptable

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vmforge/vmforge/internal/run"
)

// Sizes in bytes.
const (
	SectorSize = 512
	MiB        = 1 << 20
)

// FirstUsableSector is the conventional start of the first partition,
// leaving 1 MiB in front for the partition table and bootloader.
const FirstUsableSector = 2048

// Partition describes a single partition in sfdisk script terms.
type Partition struct {
	// Start is the first sector of the partition.
	Start uint64

	// Sectors is the partition size in sectors. Zero means all
	// remaining space.
	Sectors uint64

	// Type is the sfdisk type shorthand, e.g. "L" for a Linux
	// filesystem partition.
	Type string

	// Bootable marks the partition active in the MBR.
	Bootable bool
}

// Table is a whole-disk partition table.
type Table struct {
	// Label is the partition table type, e.g. "dos".
	Label string

	// ID is the disk identifier, e.g. "0x1b2a3d4c" for a dos label.
	// The PARTUUID of partition N on a dos disk is "<id without
	// 0x>-0N".
	ID string

	Partitions []Partition
}

// NewDosTable returns an empty MBR table with a random disk
// identifier.
func NewDosTable() Table {
	u := uuid.New()

	return Table{
		Label: "dos",
		ID:    fmt.Sprintf("0x%02x%02x%02x%02x", u[0], u[1], u[2], u[3]),
	}
}

// PartUUID returns the PARTUUID a bootloader uses to identify the
// given partition, counted from 1.
func (t Table) PartUUID(num int) string {
	return fmt.Sprintf("%s-%02x", strings.TrimPrefix(t.ID, "0x"), num)
}

// Script renders the table as sfdisk script input.
func (t Table) Script() string {
	var b strings.Builder

	fmt.Fprintf(&b, "label: %s\n", t.Label)
	fmt.Fprintf(&b, "label-id: %s\n", t.ID)
	b.WriteString("\n")

	for _, p := range t.Partitions {
		fields := []string{
			fmt.Sprintf("start=%d", p.Start),
		}

		if p.Sectors > 0 {
			fields = append(fields, fmt.Sprintf("size=%d", p.Sectors))
		}

		if p.Type != "" {
			fields = append(fields, "type="+p.Type)
		}

		if p.Bootable {
			fields = append(fields, "bootable")
		}

		b.WriteString(strings.Join(fields, ", "))
		b.WriteString("\n")
	}

	return b.String()
}

// Apply writes the table to the given block device or image file.
func (t Table) Apply(ctx context.Context, runner run.Runner, device string) error {
	cmd := run.Command{
		Path:  "sfdisk",
		Args:  []string{"--wipe", "always", device},
		Stdin: strings.NewReader(t.Script()),
	}

	err := runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("sfdisk %s: %w", device, err)
	}

	return nil
}

// CeilMiB rounds a byte count up to whole MiBs.
func CeilMiB(bytes int64) int64 {
	return (bytes + MiB - 1) / MiB
}
