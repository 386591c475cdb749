package intersection

import "github.com/sirupsen/logrus"

// log 路口决策模块的日志记录器
var log = logrus.WithField("module", "intersection")
