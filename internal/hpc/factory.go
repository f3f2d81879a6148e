package hpc

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/NREL/jade/internal/model"
)

// New returns the Adapter implementation for hpcType.
func New(hpcType model.HpcType, log *logrus.Entry) (Adapter, error) {
	switch hpcType {
	case model.HpcTypeSlurm:
		return NewSlurmAdapter(log), nil
	case model.HpcTypeFake:
		return NewFakeAdapter(log), nil
	case model.HpcTypeLocal:
		return NewLocalAdapter(log), nil
	default:
		return nil, fmt.Errorf("unsupported hpc type %q", hpcType)
	}
}
