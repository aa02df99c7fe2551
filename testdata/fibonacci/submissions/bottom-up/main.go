package main

import (
	"bufio"
	"fmt"
	"os"
)

// Iterates pairs from the bottom up.
func main() {
	var n int
	if _, err := fmt.Fscan(bufio.NewReader(os.Stdin), &n); err != nil {
		os.Exit(1)
	}
	prev, cur := 0, 1
	if n == 0 {
		cur = 0
	}
	for i := 2; i <= n; i++ {
		prev, cur = cur, prev+cur
	}
	fmt.Print(cur)
}
