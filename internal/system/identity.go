package system

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"

	"sysmon-agent/internal/model"
)

type identityProbe struct {
	hostInfo   func(context.Context) (*host.InfoStat, error)
	memory     func(context.Context) (*mem.VirtualMemoryStat, error)
	cpuCount   func(context.Context, bool) (int, error)
	cpuInfo    func(context.Context) ([]cpu.InfoStat, error)
	interfaces func(context.Context) (psnet.InterfaceStatList, error)
}

func newIdentityProbe() identityProbe {
	return identityProbe{
		hostInfo:   host.InfoWithContext,
		memory:     mem.VirtualMemoryWithContext,
		cpuCount:   cpu.CountsWithContext,
		cpuInfo:    cpu.InfoWithContext,
		interfaces: psnet.InterfacesWithContext,
	}
}

// ResolveIdentity introspects the host once. Any error is fatal for the
// agent: every record it writes carries the device id.
func ResolveIdentity(ctx context.Context) (model.DeviceIdentity, error) {
	return newIdentityProbe().resolve(ctx)
}

func (p identityProbe) resolve(ctx context.Context) (model.DeviceIdentity, error) {
	info, err := p.hostInfo(ctx)
	if err != nil {
		return model.DeviceIdentity{}, fmt.Errorf("host info: %w", err)
	}
	vm, err := p.memory(ctx)
	if err != nil {
		return model.DeviceIdentity{}, fmt.Errorf("virtual memory: %w", err)
	}
	cpus, err := p.cpuCount(ctx, true)
	if err != nil {
		return model.DeviceIdentity{}, fmt.Errorf("cpu count: %w", err)
	}

	deviceID := ""
	if ifaces, ifErr := p.interfaces(ctx); ifErr == nil {
		deviceID = deviceIDFromInterfaces(ifaces)
	}
	if deviceID == "" {
		deviceID = strings.TrimSpace(info.HostID)
	}
	if deviceID == "" {
		return model.DeviceIdentity{}, errors.New("no hardware address or host id available")
	}

	processor := ""
	if infos, cpuErr := p.cpuInfo(ctx); cpuErr == nil && len(infos) > 0 {
		processor = strings.TrimSpace(infos[0].ModelName)
	}

	machine := info.KernelArch
	if machine == "" {
		machine = runtime.GOARCH
	}

	return model.DeviceIdentity{
		DeviceID:   deviceID,
		System:     systemName(info.OS),
		Release:    info.KernelVersion,
		Version:    strings.TrimSpace(info.Platform + " " + info.PlatformVersion),
		Machine:    machine,
		Processor:  processor,
		TotalRAMGB: GiBRounded(vm.Total),
		CPUCount:   cpus,
	}, nil
}

// deviceIDFromInterfaces picks the first non-loopback interface, by name,
// carrying a non-zero 48-bit MAC and renders it as a decimal integer.
func deviceIDFromInterfaces(ifaces psnet.InterfaceStatList) string {
	sorted := slices.Clone(ifaces)
	slices.SortFunc(sorted, func(a, b psnet.InterfaceStat) int {
		return strings.Compare(a.Name, b.Name)
	})
	for _, iface := range sorted {
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}
		if id, ok := macToDecimal(iface.HardwareAddr); ok {
			return id
		}
	}
	return ""
}

func macToDecimal(addr string) (string, bool) {
	hw, err := net.ParseMAC(addr)
	if err != nil || len(hw) != 6 {
		return "", false
	}
	var v uint64
	for _, b := range hw {
		v = v<<8 | uint64(b)
	}
	if v == 0 {
		return "", false
	}
	return strconv.FormatUint(v, 10), true
}

func systemName(goos string) string {
	switch strings.ToLower(goos) {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	case "":
		return runtime.GOOS
	default:
		return strings.ToUpper(goos[:1]) + goos[1:]
	}
}
