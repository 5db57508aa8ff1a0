/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

var (
	errNoEnvArg     = errors.New("no env arg")
	ErrInvalidArg   = errors.New("Invalid arguments")
	ErrEmptyEnvFile = errors.New("environment secret file is empty")
)

// lookupEnv fetches envName from the environment, falling back to the
// _FILE convention where the variable names a file whose first line holds
// the value (the usual container secret mount shape).
func lookupEnv(nm string) (string, error) {
	if s, ok := os.LookupEnv(nm); ok {
		return s, nil
	}
	fp, ok := os.LookupEnv(nm + `_FILE`)
	if !ok {
		return ``, errNoEnvArg
	}
	fin, err := os.Open(fp)
	if err != nil {
		// they specified a file but we can't open it
		return ``, err
	}
	defer fin.Close()
	scn := bufio.NewScanner(fin)
	scn.Scan()
	if err = scn.Err(); err != nil {
		return ``, err
	}
	s := scn.Text()
	if s == `` {
		return ``, ErrEmptyEnvFile
	}
	return s, nil
}

// LoadEnvVar overlays an environment value onto a config value that the
// file left unset; values present in the config file always win. Only
// the types the daemon config actually carries are supported.
func LoadEnvVar(cnd interface{}, envName string, defVal interface{}) error {
	if cnd == nil || envName == `` {
		return ErrInvalidArg
	}
	switch v := cnd.(type) {
	case *string:
		if *v != `` {
			return nil
		}
		def, ok := defVal.(string)
		if defVal != nil && !ok {
			return ErrInvalidArg
		}
		s, err := lookupEnv(envName)
		if err == errNoEnvArg {
			*v = def
			return nil
		} else if err != nil {
			return err
		}
		*v = s
	case *bool:
		if *v {
			return nil
		}
		def, ok := defVal.(bool)
		if defVal != nil && !ok {
			return ErrInvalidArg
		}
		s, err := lookupEnv(envName)
		if err == errNoEnvArg {
			*v = def
			return nil
		} else if err != nil {
			return err
		}
		if *v, err = ParseBool(s); err != nil {
			return err
		}
	case *uint16:
		if *v != 0 {
			return nil
		}
		def, ok := defVal.(uint16)
		if defVal != nil && !ok {
			return ErrInvalidArg
		}
		u, err := envUint(envName, uint64(def), 0xffff)
		if err != nil {
			return err
		}
		*v = uint16(u)
	case *uint32:
		if *v != 0 {
			return nil
		}
		def, ok := defVal.(uint32)
		if defVal != nil && !ok {
			return ErrInvalidArg
		}
		u, err := envUint(envName, uint64(def), 0xffffffff)
		if err != nil {
			return err
		}
		*v = uint32(u)
	default:
		return ErrInvalidArg
	}
	return nil
}

func envUint(envName string, def, max uint64) (uint64, error) {
	s, err := lookupEnv(envName)
	if err == errNoEnvArg {
		return def, nil
	} else if err != nil {
		return 0, err
	}
	u, err := ParseUint64(s)
	if err != nil {
		return 0, err
	}
	if u > max {
		return 0, fmt.Errorf("%d overflows the parameter", u)
	}
	return u, nil
}
