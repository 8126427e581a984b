package trace

import (
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pagesim/mem/vm"
)

func readAll(r Reader) ([]Record, error) {
	records := []Record{}

	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}

		if err != nil {
			return records, err
		}

		records = append(records, rec)
	}
}

var _ = Describe("Reader", func() {
	var format Format

	BeforeEach(func() {
		format, _ = NewFormat(4096)
	})

	It("should read records line by line", func() {
		r := NewReader(strings.NewReader("0041f7a0 R\n13f5e2c0 W\n"), format)

		records, err := readAll(r)

		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(Equal([]Record{
			{
				Raw:       "0041f7a0 R",
				Reference: vm.Reference{Page: 0x41f, Offset: 0x7a0, Action: 'R'},
			},
			{
				Raw:       "13f5e2c0 W",
				Reference: vm.Reference{Page: 0x13f5e, Offset: 0x2c0, Action: 'W'},
			},
		}))
	})

	It("should read the last record without a line terminator", func() {
		r := NewReader(strings.NewReader("0041f7a0 R\n13f5e2c0 W"), format)

		records, err := readAll(r)

		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
	})

	It("should accept CRLF line endings", func() {
		r := NewReader(strings.NewReader("0041f7a0 R\r\n13f5e2c0 W\r\n"), format)

		records, err := readAll(r)

		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
	})

	It("should ignore trailing blank lines", func() {
		r := NewReader(strings.NewReader("0041f7a0 R\n\n"), format)

		records, err := readAll(r)

		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
	})

	It("should report an empty trace as exhausted", func() {
		r := NewReader(strings.NewReader(""), format)

		_, err := r.Next()

		Expect(err).To(Equal(io.EOF))
	})

	It("should keep reporting exhaustion", func() {
		r := NewReader(strings.NewReader("0041f7a0 R\n"), format)

		_, _ = r.Next()
		_, err := r.Next()
		Expect(err).To(Equal(io.EOF))

		_, err = r.Next()
		Expect(err).To(Equal(io.EOF))
	})

	It("should fail on a truncated record", func() {
		r := NewReader(strings.NewReader("0041f7a0 R\n13f5e"), format)

		_, err := r.Next()
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Next()
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(Equal(io.EOF))
	})

	It("should fail when records run together", func() {
		r := NewReader(strings.NewReader("0041f7a0 RX13f5e2c0 W\n"), format)

		_, err := r.Next()

		Expect(err).To(MatchError(ContainSubstring("expected end of line")))
	})
})
