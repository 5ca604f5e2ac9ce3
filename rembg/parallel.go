package rembg

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minParallelLines 行数太少时直接串行处理
const minParallelLines = 64

// parallelLines 把 [0, n) 切成若干连续区间并发处理
// 每个区间只写自己负责的行，结果与串行顺序一致
func parallelLines(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if n < minParallelLines || workers <= 1 {
		fn(0, n)
		return
	}
	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
