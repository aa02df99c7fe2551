package main

import "fmt"

// Off by one in the recurrence: adds 1 instead of the second predecessor.
func fib(n int) int {
	if n < 2 {
		return n
	}
	return fib(n-1) + 1
}

func main() {
	var n int
	fmt.Scan(&n)
	fmt.Print(fib(n))
}
