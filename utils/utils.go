package utils

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/twmb/murmur3"
)

// HashStrings hashes an ordered list of strings into one value. The order is significant.
func HashStrings(ss []string) uint64 {
	hash := murmur3.New64()
	for _, s := range ss {
		_, err := hash.Write([]byte(s))
		if err != nil {
			panic(err)
		}
		// separator keeps ["ab", "c"] and ["a", "bc"] apart
		_, _ = hash.Write([]byte{0})
	}
	return hash.Sum64()
}

// ReadLines returns the non blank lines of the reader, trimmed of surrounding whitespace.
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var result []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}
		result = append(result, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func ReadList(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadLines(file)
}
