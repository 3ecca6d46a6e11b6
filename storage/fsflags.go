package storage

import "os"

const (
	osCreateFlags = os.O_RDWR | os.O_CREATE
	osReadFlags   = os.O_RDONLY
	osWriteFlags  = os.O_RDWR
)
