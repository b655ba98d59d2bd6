package diskmanager

import (
	"errors"
	"log/slog"
	"os"
	"sync"
)

// ############################################# ERRORS ####################################################

var (
	ErrInvalidPageID  = errors.New("diskmanager: invalid page id")
	ErrPageOutOfRange = errors.New("diskmanager: page beyond end of file")
	ErrShortRead      = errors.New("diskmanager: short page read")
	ErrFileLocked     = errors.New("diskmanager: file is locked by another process")
	ErrClosed         = errors.New("diskmanager: closed")
	ErrNotIndex       = errors.New("diskmanager: not an index file")
)

// ############################################# METADATA ##################################################

const (
	// MinCapacity is the page capacity of a fresh file.
	MinCapacity = 16

	metaMagic     = "BPTC"
	metaMagicOff  = 0
	metaCapOff    = 4
	metaBlockSize = 8
)

// ############################################# DISK MANAGER #############################################

// DiskManager owns one index file and moves whole pages between it and memory.
type DiskManager struct {
	file     *os.File
	filePath string

	pageCapacity int // pages the file is sized for, excluding the metadata slot
	pages        int // highest page count ever requested through IncreaseDiskSpace

	numWrites  int
	numDeletes int
	numFlushes int

	closed bool
	logger *slog.Logger
	mu     sync.Mutex
}
