package utils

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
)

var relateSourceDir string

func init() {
	_, file, _, _ := runtime.Caller(0)
	// compatible solution to get relate source directory with various operating systems
	relateSourceDir = sourceDir(file)
}

func sourceDir(file string) string {
	dir := filepath.Dir(file)
	dir = filepath.Dir(dir)

	s := filepath.Dir(dir)
	if filepath.Base(s) != "modelbind" {
		s = dir
	}
	return filepath.ToSlash(s) + "/"
}

// FileWithLineNum return the file name and line number of the current file
func FileWithLineNum() string {
	// the second caller usually from relate internal, so set i start from 2
	for i := 2; i < 15; i++ {
		_, file, line, ok := runtime.Caller(i)
		if ok && (!strings.HasPrefix(file, relateSourceDir) || strings.HasSuffix(file, "_test.go")) {
			return file + ":" + strconv.FormatInt(int64(line), 10)
		}
	}

	return ""
}

func Contains(elems []string, elem string) bool {
	for _, e := range elems {
		if elem == e {
			return true
		}
	}
	return false
}

func ToString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []byte:
		return string(v)
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(reflect.Indirect(reflect.ValueOf(value)).Interface())
	}
}

// IDEqual reports whether two record ids identify the same record.
// Ids coming back from a connector may not keep their original Go type,
// so numeric and string forms of the same value compare equal.
func IDEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return ToString(a) == ToString(b)
}

// ContainsID reports whether ids contains id, using IDEqual semantics.
func ContainsID(ids []interface{}, id interface{}) bool {
	for _, v := range ids {
		if IDEqual(v, id) {
			return true
		}
	}
	return false
}

// IndexOfID returns the position of id within ids, or -1.
func IndexOfID(ids []interface{}, id interface{}) int {
	for i, v := range ids {
		if IDEqual(v, id) {
			return i
		}
	}
	return -1
}

// HasDuplicateIDs reports whether the id list holds the same id twice.
func HasDuplicateIDs(ids []interface{}) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		key := ToString(id)
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}
