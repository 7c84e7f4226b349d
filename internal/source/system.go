package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/sysglance/sysglance/internal/model"
)

// ownerCacheSize bounds the uid -> username cache. Far more than the
// distinct account count on any desktop machine.
const ownerCacheSize = 512

// System is the gopsutil-backed Source used in production.
type System struct {
	log    *slog.Logger
	owners *lru.Cache[int32, string]
}

// NewSystem returns a Source reading from the local operating system.
// A nil logger discards all log output.
func NewSystem(logger *slog.Logger) (*System, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	owners, err := lru.New[int32, string](ownerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("source: owner cache: %w", err)
	}
	return &System{log: logger, owners: owners}, nil
}

func (s *System) CPU(ctx context.Context) (CPUSample, []CPUSample, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil || len(times) == 0 {
		return CPUSample{}, nil, fmt.Errorf("cpu times: %w", errors.Join(err, ErrUnavailable))
	}
	agg := toCPUSample(times[0])

	coreTimes, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		// Aggregate alone is still usable; per-core charts just stay empty.
		s.log.Debug("per-core cpu times failed", "err", err)
		return agg, nil, nil
	}
	perCore := make([]CPUSample, len(coreTimes))
	for i, t := range coreTimes {
		perCore[i] = toCPUSample(t)
	}
	return agg, perCore, nil
}

func toCPUSample(t cpu.TimesStat) CPUSample {
	total := t.Total()
	return CPUSample{Busy: total - t.Idle - t.Iowait, Total: total}
}

func (s *System) Memory(ctx context.Context) (MemorySample, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemorySample{}, fmt.Errorf("virtual memory: %w", errors.Join(err, ErrUnavailable))
	}
	return MemorySample{Used: vm.Used, Total: vm.Total, Available: vm.Available}, nil
}

func (s *System) Disks(ctx context.Context) ([]model.DiskInfo, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("disk partitions: %w", errors.Join(err, ErrUnavailable))
	}
	disks := make([]model.DiskInfo, 0, len(parts))
	for _, part := range parts {
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			// A volume that vanished or denies statfs is dropped, not fatal.
			s.log.Debug("disk usage failed", "mountpoint", part.Mountpoint, "err", err)
			continue
		}
		disks = append(disks, model.DiskInfo{
			Name:        part.Device,
			Mountpoint:  part.Mountpoint,
			Filesystem:  part.Fstype,
			MediaType:   mediaType(part.Device),
			TotalBytes:  usage.Total,
			UsedBytes:   usage.Used,
			FreeBytes:   usage.Free,
			UsedPercent: usage.UsedPercent,
		})
	}
	return disks, nil
}

func (s *System) Processes(ctx context.Context) ([]ProcessRecord, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process list: %w", errors.Join(err, ErrUnavailable))
	}
	records := make([]ProcessRecord, 0, len(procs))
	for _, p := range procs {
		name, _ := p.NameWithContext(ctx)
		if name == "" {
			// Kernel threads and already-gone processes.
			continue
		}
		rec := ProcessRecord{PID: p.Pid, Name: name}

		// Permission-denied details degrade to zero values per field; a
		// process we cannot fully inspect still belongs in the table.
		if cmd, err := p.CmdlineWithContext(ctx); err == nil && cmd != "" {
			rec.CommandLine = cmd
		} else {
			rec.CommandLine = name
		}
		if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 {
			rec.Status = st[0]
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			rec.MemoryBytes = mi.RSS
		}
		if t, err := p.TimesWithContext(ctx); err == nil && t != nil {
			rec.CPUSeconds = t.User + t.System
		}
		rec.Owner = s.ownerOf(ctx, p)

		records = append(records, rec)
	}
	return records, nil
}

// ownerOf resolves the process owner through the uid cache. Username
// resolution walks the account database, which is too slow to repeat for
// every process on every tick.
func (s *System) ownerOf(ctx context.Context, p *process.Process) string {
	uids, err := p.UidsWithContext(ctx)
	if err != nil || len(uids) == 0 {
		return ""
	}
	uid := uids[0] // real uid
	if name, ok := s.owners.Get(uid); ok {
		return name
	}
	u, err := user.LookupId(strconv.Itoa(int(uid)))
	name := strconv.Itoa(int(uid))
	if err == nil {
		name = u.Username
	}
	s.owners.Add(uid, name)
	return name
}

func (s *System) Host(ctx context.Context) (HostSample, error) {
	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return HostSample{}, fmt.Errorf("host uptime: %w", errors.Join(err, ErrUnavailable))
	}
	return HostSample{UptimeSeconds: uptime}, nil
}

func (s *System) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return fmt.Errorf("terminate %d: %w", pid, ErrNotFound)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminate %d: %w", pid, classifyKillError(err))
	}
	return nil
}

// classifyKillError maps OS signal-delivery failures onto the package
// sentinels so callers can branch with errors.Is.
func classifyKillError(err error) error {
	switch {
	case errors.Is(err, syscall.EPERM), errors.Is(err, os.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, syscall.ESRCH), errors.Is(err, process.ErrorProcessNotRunning),
		strings.Contains(err.Error(), "process already finished"):
		return ErrNotFound
	default:
		return err
	}
}

// mediaType reports SSD, HDD, or Unknown for a block device. Linux exposes
// this in sysfs; elsewhere the file simply does not exist and we fall back
// to Unknown.
func mediaType(device string) string {
	base := deviceBase(device)
	if base == "" {
		return "Unknown"
	}
	b, err := os.ReadFile(filepath.Join("/sys/block", base, "queue", "rotational"))
	if err != nil {
		return "Unknown"
	}
	switch strings.TrimSpace(string(b)) {
	case "0":
		return "SSD"
	case "1":
		return "HDD"
	default:
		return "Unknown"
	}
}

// deviceBase strips the /dev prefix and the partition suffix: sda1 -> sda,
// nvme0n1p2 -> nvme0n1. Mapped or pseudo devices return "".
func deviceBase(device string) string {
	name := strings.TrimPrefix(device, "/dev/")
	if name == "" || strings.ContainsRune(name, '/') {
		return ""
	}
	if strings.HasPrefix(name, "nvme") {
		// nvme0n1p2 -> nvme0n1; nvme0n1 stays as is.
		if i := strings.LastIndex(name, "p"); i > 0 {
			if _, err := strconv.Atoi(name[i+1:]); err == nil {
				return name[:i]
			}
		}
		return name
	}
	return strings.TrimRight(name, "0123456789")
}
