package planner

import "github.com/sirupsen/logrus"

// log 规划器模块的日志记录器
var log = logrus.WithField("module", "planner")
