package distributor_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestDistributor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Distributor Suite")
}
