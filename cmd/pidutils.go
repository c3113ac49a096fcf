// Copyright 2018-2019 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/logrange/range/pkg/utils/fileutil"
	"github.com/pkg/errors"
)

// PidFile keeps the pid of the running server and prevents starting the
// second instance with the same pid file
type PidFile struct {
	fn string
	fl *flock.Flock
}

// ErrNotRunning is returned by PidFile.Interrupt when there is no pid file
var ErrNotRunning = fmt.Errorf("not running")

// NewPidFile creates new PidFile struct by the file name
func NewPidFile(fn string) *PidFile {
	return &PidFile{fn: fn}
}

// Interrupt reads the pid file and sends SIGINT to the process
func (pf *PidFile) Interrupt() error {
	pid, err := pf.ReadPid()
	if err != nil {
		return err
	}

	if pid == -1 {
		return ErrNotRunning
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrapf(err, "could not access the process pid=%d", pid)
	}

	if err = p.Signal(os.Interrupt); err != nil {
		return errors.Wrapf(err, "could not send signal to pid=%d", pid)
	}
	fmt.Println("Sending interrupt notification to process pid=", pid)
	return nil
}

// ReadPid reads the pid file. It returns -1 if there is no file.
func (pf *PidFile) ReadPid() (int, error) {
	res, err := ioutil.ReadFile(pf.fn)
	if err != nil {
		return -1, nil
	}

	content := strings.TrimSpace(string(res))
	if len(content) > 10 {
		return -1, fmt.Errorf("wrong content of %s", pf.fn)
	}

	pid, err := strconv.ParseInt(content, 10, 64)
	if err != nil {
		return -1, fmt.Errorf("could not parse content=\"%s\" of the file %s", content, pf.fn)
	}
	return int(pid), nil
}

// Lock acquires the pid file and writes the current process id there. The
// pid file directory is created if needed.
func (pf *PidFile) Lock() error {
	if pf.fl != nil {
		panic("Lock() must not be called twice")
	}

	if err := fileutil.EnsureDirExists(filepath.Dir(pf.fn)); err != nil {
		return errors.Wrapf(err, "could not create dir for %s", pf.fn)
	}

	plock := flock.New(pf.fn)
	if l, err := plock.TryLock(); !l || err != nil {
		return fmt.Errorf("could not lock %s, already running? err=%v", pf.fn, err)
	}

	if err := pf.writePid(); err != nil {
		_ = plock.Unlock()
		return errors.Wrapf(err, "could not write current pid to %s", pf.fn)
	}
	pf.fl = plock
	return nil
}

// Unlock releases resources acquired by Lock.
func (pf *PidFile) Unlock() {
	if pf.fl == nil {
		panic("Must be locked!")
	}
	_ = os.Remove(pf.fn)
	_ = pf.fl.Unlock()
	pf.fl = nil
}

func (pf *PidFile) writePid() error {
	return ioutil.WriteFile(pf.fn, []byte(strconv.Itoa(os.Getpid())), 0640)
}

// RemoveArgsWithName removes all args from the list where there is the word name,
// it return new slice
func RemoveArgsWithName(args []string, name string) []string {
	name = strings.ToLower(name)
	if len(name) == 0 {
		return args
	}

	res := make([]string, 0, len(args))
	for _, a := range args {
		if strings.Contains(strings.ToLower(a), name) {
			continue
		}
		res = append(res, a)
	}

	return res
}

// RunCommand starts the command c with params detached and waits a second
// to be sure the process is not over immediately
func RunCommand(c string, params ...string) error {
	fmt.Printf("Starting command %s with params %v ... \n", c, params)
	cmd := exec.Command(c, params...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGCHLD)
	defer signal.Stop(sigChan)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not run command %s with params=%v error=%s", c, params, err)
	}

	select {
	case <-sigChan:
		return fmt.Errorf("the process could not be started for a reason")
	case <-time.After(time.Second):
		fmt.Printf("Started. pid=%d\n", cmd.Process.Pid)
	}
	return nil
}
