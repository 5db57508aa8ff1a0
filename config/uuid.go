/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/google/uuid"
)

const (
	uuidParam = `Daemon-UUID`
)

// SetDaemonUUID modifies the configuration file at loc, setting the
// Daemon-UUID parameter to the given UUID. This lets the daemon assign
// itself an instance id when the config file does not carry one.
func (c *Config) SetDaemonUUID(id uuid.UUID, loc string) (err error) {
	if id == (uuid.UUID{}) {
		return errors.New("UUID is empty")
	}
	var content string
	if content, err = readConfigFile(loc); err != nil {
		return
	}
	if content, err = upsertGlobal(content, uuidParam, fmt.Sprintf(`"%s"`, id)); err != nil {
		return
	}
	if err = updateConfigFile(loc, content); err != nil {
		return
	}
	c.Daemon_UUID = id.String()
	return
}

func updateConfigFile(loc string, content string) error {
	if loc == `` {
		return errors.New("configuration was loaded with bytes, cannot update")
	}
	fout, err := renameio.TempFile(filepath.Dir(loc), loc)
	if err != nil {
		return err
	}
	if err := writeFull(fout, []byte(content)); err != nil {
		fout.Cleanup()
		return err
	}
	return fout.CloseAtomicallyReplace()
}

func writeFull(w io.Writer, b []byte) error {
	var written int
	for written < len(b) {
		if n, err := w.Write(b[written:]); err != nil {
			return err
		} else if n == 0 {
			return errors.New("empty write")
		} else {
			written += n
		}
	}
	return nil
}
