package main

import "fmt"

// Top-down recursion with a slice-backed cache.
func fib(n int, cache []int) int {
	if n < 2 {
		return n
	}
	if cache[n] == 0 {
		cache[n] = fib(n-1, cache) + fib(n-2, cache)
	}
	return cache[n]
}

func main() {
	var n int
	fmt.Scan(&n)
	fmt.Print(fib(n, make([]int, n+1)))
}
