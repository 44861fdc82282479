package system

import (
	"context"
	"errors"
	"testing"

	"github.com/distatus/battery"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysmon-agent/internal/model"
)

func TestAverageCPU(t *testing.T) {
	avg, err := AverageCPU([]float64{10, 20, 30, 40})
	require.NoError(t, err)
	assert.Equal(t, 25.0, avg)

	_, err = AverageCPU(nil)
	assert.ErrorIs(t, err, ErrNoCPUSamples)
}

func TestGiBRounded(t *testing.T) {
	assert.Equal(t, 16.0, GiBRounded(16*1024*1024*1024))
	assert.Equal(t, 7.67, GiBRounded(8236965888))
	assert.Equal(t, 0.0, GiBRounded(0))
}

func TestPeakCountersNeverDecrease(t *testing.T) {
	var p peakCounters
	assert.Equal(t, model.NetCounters{BytesSent: 100, BytesRecv: 200}, p.observe(model.NetCounters{BytesSent: 100, BytesRecv: 200}))
	assert.Equal(t, model.NetCounters{BytesSent: 100, BytesRecv: 250}, p.observe(model.NetCounters{BytesSent: 40, BytesRecv: 250}))
	assert.Equal(t, model.NetCounters{BytesSent: 120, BytesRecv: 250}, p.observe(model.NetCounters{BytesSent: 120, BytesRecv: 10}))
}

func TestBytesToMiB(t *testing.T) {
	assert.Equal(t, 1.5, BytesToMiB(1572864))
}

func TestReadingFromBatteries(t *testing.T) {
	tests := []struct {
		name   string
		bats   []*battery.Battery
		wantOK bool
		want   model.BatteryReading
	}{
		{name: "no batteries", bats: nil, wantOK: false},
		{name: "battery without capacity", bats: []*battery.Battery{{Full: 0}}, wantOK: false},
		{
			name:   "charging reports unlimited time",
			bats:   []*battery.Battery{{State: battery.State{Raw: battery.Charging}, Current: 30000, Full: 60000}},
			want:   model.BatteryReading{Percent: 50, PowerPlugged: true, SecsLeft: model.BatterySecsUnlimited},
			wantOK: true,
		},
		{
			name:   "discharging with rate",
			bats:   []*battery.Battery{{State: battery.State{Raw: battery.Discharging}, Current: 20000, Full: 40000, ChargeRate: 10000}},
			want:   model.BatteryReading{Percent: 50, PowerPlugged: false, SecsLeft: 7200},
			wantOK: true,
		},
		{
			name:   "discharging without rate",
			bats:   []*battery.Battery{{State: battery.State{Raw: battery.Discharging}, Current: 10000, Full: 40000}},
			want:   model.BatteryReading{Percent: 25, PowerPlugged: false, SecsLeft: model.BatterySecsUnknown},
			wantOK: true,
		},
		{
			name:   "two batteries aggregate and skip nil",
			bats:   []*battery.Battery{
				nil,
				{State: battery.State{Raw: battery.Full}, Current: 50000, Full: 50000},
				{State: battery.State{Raw: battery.Discharging}, Current: 0, Full: 50000, ChargeRate: 5000},
			},
			want:   model.BatteryReading{Percent: 50, PowerPlugged: false, SecsLeft: 36000},
			wantOK: true,
		},
		{
			name:   "empty battery is not plugged in",
			bats:   []*battery.Battery{{State: battery.State{Raw: battery.Empty}, Current: 0, Full: 40000}},
			want:   model.BatteryReading{Percent: 0, PowerPlugged: false, SecsLeft: model.BatterySecsUnknown},
			wantOK: true,
		},
		{
			name:   "over-full clamps to 100",
			bats:   []*battery.Battery{{State: battery.State{Raw: battery.Full}, Current: 51000, Full: 50000}},
			want:   model.BatteryReading{Percent: 100, PowerPlugged: true, SecsLeft: model.BatterySecsUnlimited},
			wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := readingFromBatteries(tt.bats)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHostSensorsBattery(t *testing.T) {
	h := NewHostSensors()

	h.batteries = func() ([]*battery.Battery, error) { return nil, nil }
	_, ok, err := h.Battery(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	h.batteries = func() ([]*battery.Battery, error) { return nil, errors.New("no power supply class") }
	_, ok, err = h.Battery(context.Background())
	require.Error(t, err)
	assert.False(t, ok)

	h.batteries = func() ([]*battery.Battery, error) {
		return []*battery.Battery{{State: battery.State{Raw: battery.Charging}, Current: 1, Full: 2}, nil}, errors.New("partial")
	}
	r, ok, err := h.Battery(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 50.0, r.Percent)
}

func TestMacToDecimal(t *testing.T) {
	id, ok := macToDecimal("00:00:00:00:01:00")
	assert.True(t, ok)
	assert.Equal(t, "256", id)

	id, ok = macToDecimal("a4:83:e7:12:34:56")
	assert.True(t, ok)
	assert.Equal(t, "180886424400982", id)

	_, ok = macToDecimal("00:00:00:00:00:00")
	assert.False(t, ok)
	_, ok = macToDecimal("")
	assert.False(t, ok)
	_, ok = macToDecimal("00:00:00:00:fe:80:00:00:00:00:00:00:00:00:00:01:00:00:00:01")
	assert.False(t, ok)
}

func TestDeviceIDFromInterfacesIsOrderIndependent(t *testing.T) {
	ifaces := psnet.InterfaceStatList{
		{Name: "wlan0", HardwareAddr: "00:00:00:00:00:02"},
		{Name: "lo", HardwareAddr: "00:00:00:00:00:09", Flags: []string{"up", "loopback"}},
		{Name: "eth0", HardwareAddr: "00:00:00:00:00:01"},
		{Name: "docker0", HardwareAddr: ""},
	}
	reversed := psnet.InterfaceStatList{ifaces[3], ifaces[2], ifaces[1], ifaces[0]}

	assert.Equal(t, "1", deviceIDFromInterfaces(ifaces))
	assert.Equal(t, deviceIDFromInterfaces(ifaces), deviceIDFromInterfaces(reversed))
	assert.Empty(t, deviceIDFromInterfaces(psnet.InterfaceStatList{{Name: "lo", Flags: []string{"loopback"}}}))
}

func fakeProbe() identityProbe {
	return identityProbe{
		hostInfo: func(context.Context) (*host.InfoStat, error) {
			return &host.InfoStat{
				OS:              "linux",
				Platform:        "ubuntu",
				PlatformVersion: "24.04",
				KernelVersion:   "6.8.0-45-generic",
				KernelArch:      "x86_64",
				HostID:          "8c1f6a2e-host",
			}, nil
		},
		memory: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 16 * 1024 * 1024 * 1024}, nil
		},
		cpuCount: func(context.Context, bool) (int, error) { return 8, nil },
		cpuInfo: func(context.Context) ([]cpu.InfoStat, error) {
			return []cpu.InfoStat{{ModelName: " Intel(R) Core(TM) i7-1185G7 "}}, nil
		},
		interfaces: func(context.Context) (psnet.InterfaceStatList, error) {
			return psnet.InterfaceStatList{{Name: "eth0", HardwareAddr: "00:00:00:00:01:00"}}, nil
		},
	}
}

func TestResolveIdentity(t *testing.T) {
	id, err := fakeProbe().resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DeviceIdentity{
		DeviceID:   "256",
		System:     "Linux",
		Release:    "6.8.0-45-generic",
		Version:    "ubuntu 24.04",
		Machine:    "x86_64",
		Processor:  "Intel(R) Core(TM) i7-1185G7",
		TotalRAMGB: 16,
		CPUCount:   8,
	}, id)

	again, err := fakeProbe().resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestResolveIdentityFallsBackToHostID(t *testing.T) {
	p := fakeProbe()
	p.interfaces = func(context.Context) (psnet.InterfaceStatList, error) { return nil, errors.New("permission denied") }
	id, err := p.resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "8c1f6a2e-host", id.DeviceID)
}

func TestResolveIdentityFatalErrors(t *testing.T) {
	p := fakeProbe()
	p.memory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errors.New("no /proc") }
	_, err := p.resolve(context.Background())
	require.ErrorContains(t, err, "virtual memory")

	p = fakeProbe()
	p.interfaces = func(context.Context) (psnet.InterfaceStatList, error) { return nil, nil }
	p.hostInfo = func(context.Context) (*host.InfoStat, error) { return &host.InfoStat{OS: "linux"}, nil }
	_, err = p.resolve(context.Background())
	require.ErrorContains(t, err, "no hardware address or host id")
}

func TestSystemName(t *testing.T) {
	assert.Equal(t, "Darwin", systemName("darwin"))
	assert.Equal(t, "Windows", systemName("windows"))
	assert.Equal(t, "Freebsd", systemName("freebsd"))
}
