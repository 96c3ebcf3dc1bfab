package main

import "github.com/cucaracha-toolchain/casm/cmd/casm"

func main() {
	casm.Execute()
}
