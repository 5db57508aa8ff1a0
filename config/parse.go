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
	"strconv"
	"strings"
)

const (
	globalHeader string = `[global]`
	commentLead  string = `#`
)

var (
	ErrGlobalSectionNotFound = errors.New("global config section not found")
)

func ParseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case `true`, `t`, `yes`, `y`, `1`:
		return true, nil
	case `false`, `f`, `no`, `n`, `0`:
		return false, nil
	}
	return false, fmt.Errorf("unknown boolean value %q", v)
}

func ParseUint64(v string) (uint64, error) {
	if rest, ok := strings.CutPrefix(v, `0x`); ok {
		return strconv.ParseUint(rest, 16, 64)
	}
	return strconv.ParseUint(v, 10, 64)
}

// upsertGlobal returns content with param set to value inside the
// [Global] section. An existing assignment is rewritten in place,
// keeping its indentation and any trailing comment; a missing one is
// inserted directly under the section header. This is the only config
// mutation the daemon ever performs, stamping its Daemon-UUID on first
// start.
func upsertGlobal(content, param, value string) (string, error) {
	lines := strings.Split(content, "\n")
	gstart := -1
	for i := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(lines[i])), globalHeader) {
			gstart = i
			break
		}
	}
	if gstart == -1 {
		return ``, ErrGlobalSectionNotFound
	}
	lp := strings.ToLower(param)
	for i := gstart + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, `[`) {
			//next section, the key is not set
			break
		}
		if !strings.HasPrefix(strings.ToLower(trimmed), lp) {
			continue
		}
		indent := lines[i][:strings.Index(strings.ToLower(lines[i]), lp)]
		var comment string
		if idx := strings.Index(lines[i], commentLead); idx != -1 {
			comment = ` ` + lines[i][idx:]
		}
		lines[i] = indent + param + `=` + value + comment
		return strings.Join(lines, "\n"), nil
	}
	nl := make([]string, 0, len(lines)+1)
	nl = append(nl, lines[:gstart+1]...)
	nl = append(nl, "\t"+param+`=`+value)
	nl = append(nl, lines[gstart+1:]...)
	return strings.Join(nl, "\n"), nil
}
