package vfs

import (
	"golang.org/x/sys/unix"

	"github.com/coherentfs/coherentfs/internal/rpcapi"
)

func statFromUnix(st *unix.Stat_t) rpcapi.FileStat {
	return rpcapi.FileStat{
		Size: st.Size,
		Mode: st.Mode,
		Dev:  uint64(st.Dev),
		Atim: rpcapi.Timespec{Sec: int64(st.Atim.Sec), Nsec: int64(st.Atim.Nsec)},
		Mtim: rpcapi.Timespec{Sec: int64(st.Mtim.Sec), Nsec: int64(st.Mtim.Nsec)},
	}
}

// localStat fills a FileStat from the local cache file at full.
func localStat(full string) (rpcapi.FileStat, error) {
	var st unix.Stat_t
	if err := unix.Stat(full, &st); err != nil {
		return rpcapi.FileStat{}, err
	}
	return statFromUnix(&st), nil
}
