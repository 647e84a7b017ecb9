package main

import "github.com/anatomi/rankmaniac"

func main() {
	rankmaniac.Main()
}
