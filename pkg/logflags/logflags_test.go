package logflags

import (
	"bytes"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type bufferWriter struct {
	bytes.Buffer
}

func (bw *bufferWriter) Close() error {
	return nil
}

func resetFlags() {
	ne, resources, imports, cli = false, false, false, false
	loggerFactory = nil
	logOut = nil
}

func TestSubsystemLoggers(t *testing.T) {
	defer resetFlags()

	loggers := []struct {
		name   string
		flag   *bool
		get    func() Logger
		fields Fields
	}{
		{"ne", &ne, NELogger, Fields{"layer": "ne"}},
		{"resources", &resources, ResourcesLogger, Fields{"layer": "ne", "kind": "resources"}},
		{"imports", &imports, ImportsLogger, Fields{"layer": "ne", "kind": "imports"}},
		{"cli", &cli, CLILogger, Fields{"layer": "cli"}},
	}

	for _, tc := range loggers {
		for _, enabled := range []bool{false, true} {
			*tc.flag = enabled
			l, ok := tc.get().(*logrusLogger)
			if !ok {
				t.Fatalf("%s: expected a *logrusLogger, got %T", tc.name, tc.get())
			}
			want := logrus.ErrorLevel
			if enabled {
				want = logrus.DebugLevel
			}
			if l.Logger.Level != want {
				t.Fatalf("%s (enabled=%v): expected level %v, got %v", tc.name, enabled, want, l.Logger.Level)
			}
			if len(l.Data) != len(tc.fields) {
				t.Fatalf("%s: expected fields %v, got %v", tc.name, tc.fields, l.Data)
			}
			for k, v := range tc.fields {
				if l.Data[k] != v {
					t.Fatalf("%s: expected fields %v, got %v", tc.name, tc.fields, l.Data)
				}
			}
			if l.Logger.Formatter != textFormatterInstance {
				t.Fatalf("%s: default formatter not used", tc.name)
			}
		}
	}
}

func TestLoggerFactory(t *testing.T) {
	defer resetFlags()
	logOut = &bufferWriter{}

	var calls []logrus.Level
	fake := WrapEntry(logrus.NewEntry(logrus.New()))
	SetLoggerFactory(func(level logrus.Level, fields Fields, out io.Writer) Logger {
		if out != logOut {
			t.Fatalf("expected out to be logOut, got %v", out)
		}
		if fields["layer"] != "ne" {
			t.Fatalf("unexpected fields %v", fields)
		}
		calls = append(calls, level)
		return fake
	})

	resources = true
	if ResourcesLogger() != fake || NELogger() != fake {
		t.Fatalf("factory result not returned")
	}
	if len(calls) != 2 || calls[0] != logrus.DebugLevel || calls[1] != logrus.ErrorLevel {
		t.Fatalf("unexpected levels %v", calls)
	}
}

func TestSetup(t *testing.T) {
	defer resetFlags()

	if err := Setup(false, "resources", ""); err != errLogstrWithoutLog {
		t.Fatalf("expected errLogstrWithoutLog, got %v", err)
	}
	if err := Setup(true, "resources,imports,bogus", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if NE() || !Resources() || !Imports() || CLI() {
		t.Fatalf("unexpected flags ne=%v resources=%v imports=%v cli=%v", NE(), Resources(), Imports(), CLI())
	}
	if err := Setup(true, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !NE() {
		t.Fatalf("expected ne to be enabled by default")
	}
}

func TestSetupLogDest(t *testing.T) {
	defer resetFlags()

	dest := filepath.Join(t.TempDir(), "nedump.log")
	if err := Setup(true, "imports", dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ImportsLogger().Errorf("module index %d out of range", 3)
	NELogger().Debugf("not logged, ne is disabled")
	Close()
	if logOut != nil {
		t.Fatalf("logOut not reset by Close")
	}

	buf, err := ioutil.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	s := string(buf)
	if !strings.Contains(s, " error kind=imports,layer=ne module index 3 out of range\n") {
		t.Fatalf("unexpected log file contents %q", s)
	}
	if strings.Contains(s, "not logged") {
		t.Fatalf("disabled subsystem logged at debug level: %q", s)
	}
}

func TestTextFormatter(t *testing.T) {
	defer resetFlags()
	out := &bufferWriter{}
	logOut = out

	makeLogger(logrus.DebugLevel, Fields{"layer": "ne", "kind": "resources"}).Warnf("invalid shift %d", 255)
	makeLogger(logrus.DebugLevel, Fields{"layer": "cli", "file": "my prog.exe"}).Infof("done")

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", out.String())
	}
	if !strings.HasSuffix(lines[0], " warning kind=resources,layer=ne invalid shift 255") {
		t.Fatalf("unexpected log line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ` info file="my prog.exe",layer=cli done`) {
		t.Fatalf("unexpected log line %q", lines[1])
	}
}
