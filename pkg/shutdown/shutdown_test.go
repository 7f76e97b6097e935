package shutdown

import (
	"errors"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/sunlightlinux/secinit/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.LevelError)
}

type killCall struct {
	pid int
	sig syscall.Signal
}

func stubSyscalls(t *testing.T) (*[]killCall, *[]int, *int) {
	t.Helper()
	var kills []killCall
	var reboots []int
	syncs := 0

	origKill, origSync, origReboot, origGrace := killFunc, syncFunc, rebootFunc, killGracePeriod
	killFunc = func(pid int, sig syscall.Signal) error {
		kills = append(kills, killCall{pid, sig})
		return unix.ESRCH
	}
	syncFunc = func() { syncs++ }
	rebootFunc = func(cmd int) error {
		reboots = append(reboots, cmd)
		return nil
	}
	killGracePeriod = 0
	t.Cleanup(func() {
		killFunc, syncFunc, rebootFunc, killGracePeriod = origKill, origSync, origReboot, origGrace
	})
	return &kills, &reboots, &syncs
}

type fakeUnits struct{ unloaded int }

func (f *fakeUnits) UnloadAll() { f.unloaded++ }

func TestKillAllProcesses(t *testing.T) {
	kills, _, _ := stubSyscalls(t)

	KillAllProcesses(testLogger())

	if len(*kills) != 2 {
		t.Fatalf("Expected 2 kill calls, got %d", len(*kills))
	}
	if (*kills)[0] != (killCall{-1, unix.SIGTERM}) {
		t.Errorf("Expected kill(-1, SIGTERM), got %+v", (*kills)[0])
	}
	if (*kills)[1] != (killCall{-1, unix.SIGKILL}) {
		t.Errorf("Expected kill(-1, SIGKILL), got %+v", (*kills)[1])
	}
}

func TestExecutePoweroff(t *testing.T) {
	kills, reboots, syncs := stubSyscalls(t)
	units := &fakeUnits{}

	if err := Execute(ActionPoweroff, units, testLogger()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if units.unloaded != 1 {
		t.Errorf("expected units to be unloaded once, got %d", units.unloaded)
	}
	if len(*kills) != 2 {
		t.Errorf("expected 2 kill calls, got %d", len(*kills))
	}
	if *syncs != 1 {
		t.Errorf("expected 1 sync, got %d", *syncs)
	}
	if len(*reboots) != 1 || (*reboots)[0] != unix.LINUX_REBOOT_CMD_POWER_OFF {
		t.Errorf("expected POWER_OFF reboot command, got %v", *reboots)
	}
}

func TestExecuteRebootFailureReturns(t *testing.T) {
	stubSyscalls(t)
	rebootFunc = func(int) error { return unix.EPERM }

	err := Execute(ActionReboot, &fakeUnits{}, testLogger())
	if !errors.Is(err, unix.EPERM) {
		t.Fatalf("expected EPERM from failed reboot, got %v", err)
	}
}

func TestRebootSystemCommands(t *testing.T) {
	_, reboots, _ := stubSyscalls(t)

	rebootSystem(ActionHalt)
	rebootSystem(ActionPoweroff)
	rebootSystem(ActionReboot)
	rebootSystem(Action(99))

	want := []int{
		unix.LINUX_REBOOT_CMD_HALT,
		unix.LINUX_REBOOT_CMD_POWER_OFF,
		unix.LINUX_REBOOT_CMD_RESTART,
		unix.LINUX_REBOOT_CMD_HALT,
	}
	if len(*reboots) != len(want) {
		t.Fatalf("expected %d reboot calls, got %d", len(want), len(*reboots))
	}
	for i, cmd := range want {
		if (*reboots)[i] != cmd {
			t.Errorf("call %d: expected %#x, got %#x", i, cmd, (*reboots)[i])
		}
	}
}

func TestActionString(t *testing.T) {
	if ActionPoweroff.String() != "poweroff" || ActionReboot.String() != "reboot" || ActionHalt.String() != "halt" {
		t.Error("unexpected action names")
	}
}
