package sockpool

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-connp/pkg/types"
)

// sum32 经 murmur3 的 hash.Hash32 接口计算
//
// 不用 murmur3.Sum32：它以 uintptr 遍历输入，在 -race 的 checkptr 检查下会中止。
func sum32(b []byte) uint32 {
	h := murmur3.New32()
	_, _ = h.Write(b)
	return h.Sum32()
}

// hashDest 主哈希：目标地址
func hashDest(dest types.Destination, buckets int) int {
	k := dest.Key()
	return int(sum32(k[:]) % uint32(buckets))
}

// hashDestConn 副哈希：目标地址 + 连接 ID
func hashDestConn(dest types.Destination, connID uint64, buckets int) int {
	var buf [14]byte
	k := dest.Key()
	copy(buf[:6], k[:])
	binary.BigEndian.PutUint64(buf[6:], connID)
	return int(sum32(buf[:]) % uint32(buckets))
}
