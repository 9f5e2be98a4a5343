package main

import "github.com/khrees2412/jobportal/cmd"

func main() {
	cmd.Execute()
}
