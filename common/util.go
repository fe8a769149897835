package common

import "os"

// Remove deletes the file at path if it exists. It is mostly used by tests to clean up db files.
func Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		panic(err)
	}
}

// Clone returns a copy of data that does not share its backing array.
func Clone(data []byte) []byte {
	if data == nil {
		return nil
	}
	res := make([]byte, len(data))
	copy(res, data)
	return res
}
