// Command eoscraper harvests the EUDAMED economic operator catalog into a
// resumable checkpoint.
package main

import "os"

func main() {
	os.Exit(Execute())
}
